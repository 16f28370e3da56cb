// Package fsservice translates the file-system wire protocol's text
// commands into fsengine.Engine calls and formats their replies.
package fsservice

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opsys/blockfs/internal/fsengine"
)

// Clearer is implemented by a backend that can invalidate a warm cache,
// backing the "clearcache" command. *diskcache.Cache satisfies this.
type Clearer interface {
	Clear()
}

// Dispatcher holds everything needed to answer one command line: the
// engine the command runs against, the disk geometry "f" formats with,
// and (optionally) the block cache "clearcache" resets.
type Dispatcher struct {
	engine     *fsengine.Engine
	clearer    Clearer
	ncyl, nsec int
}

// NewDispatcher builds a Dispatcher. clearer may be nil if no cache
// invalidation hook is available.
func NewDispatcher(engine *fsengine.Engine, ncyl, nsec int, clearer Clearer) *Dispatcher {
	return &Dispatcher{engine: engine, ncyl: ncyl, nsec: nsec, clearer: clearer}
}

// Dispatch answers a single already-unframed command line. keepGoing false
// tells the caller to close the connection after sending reply.
func (d *Dispatcher) Dispatch(line []byte) (reply []byte, keepGoing bool) {
	verb, rest := splitVerb(line)

	switch string(verb) {
	case "f":
		return []byte(d.handleFormat()), true
	case "mk":
		return []byte(d.handleMk(rest)), true
	case "mkdir":
		return []byte(d.handleMkdir(rest)), true
	case "rm":
		return []byte(d.handleRm(rest)), true
	case "cd":
		return []byte(d.handleCd(rest)), true
	case "rmdir":
		return []byte(d.handleRmdir(rest)), true
	case "ls":
		return []byte(d.handleLs()), true
	case "cat":
		return d.handleCat(rest), true
	case "w":
		return []byte(d.handleW(rest)), true
	case "i":
		return []byte(d.handleI(rest)), true
	case "d":
		return []byte(d.handleD(rest)), true
	case "login":
		return []byte(d.handleLogin(rest)), true
	case "chmod":
		return []byte(d.handleChmod(rest)), true
	case "p":
		return []byte(d.engine.Prompt()), true
	case "clearcache":
		if d.clearer != nil {
			d.clearer.Clear()
		}
		return []byte("Cache cleared"), true
	case "logout":
		rep, disconnect := d.handleLogout()
		return []byte(rep), !disconnect
	case "e":
		return []byte("Bye!"), false
	default:
		return []byte("Unknown command"), true
	}
}

func splitVerb(line []byte) (verb, rest []byte) {
	line = bytes.TrimSpace(line)
	idx := bytes.IndexByte(line, ' ')
	if idx < 0 {
		return line, nil
	}
	return line[:idx], line[idx+1:]
}

func firstField(args []byte) string {
	fields := bytes.Fields(args)
	if len(fields) == 0 {
		return ""
	}
	return string(fields[0])
}

// skipFields returns the remainder of args after skipping n leading
// space-delimited tokens, keeping every byte verbatim — needed because w
// and i payloads may contain bytes that bytes.Fields would itself split
// on.
func skipFields(args []byte, n int) ([]byte, bool) {
	i := 0
	for ; n > 0; n-- {
		for i < len(args) && args[i] == ' ' {
			i++
		}
		if i >= len(args) {
			return nil, false
		}
		for i < len(args) && args[i] != ' ' {
			i++
		}
		if i >= len(args) {
			return nil, false
		}
		i++ // consume the separating space
	}
	return args[i:], true
}

func errorReply(err *fsengine.Error, genericMsg string) string {
	switch err.Kind {
	case fsengine.NotLoggedIn:
		return "Please login first"
	case fsengine.PermissionDenied:
		return "Permission denied"
	case fsengine.NotFormatted:
		return "Not formatted"
	default:
		return genericMsg
	}
}

func (d *Dispatcher) handleFormat() string {
	if err := d.engine.Format(d.ncyl, d.nsec); err != nil {
		return errorReply(err, "Failed to format")
	}
	return "Format Successfully"
}

func (d *Dispatcher) handleMk(args []byte) string {
	name := firstField(args)
	if name == "" {
		return "Invalid arguments"
	}
	if err := d.engine.Mk(name); err != nil {
		return errorReply(err, "Failed to create file")
	}
	return "File created successfully"
}

func (d *Dispatcher) handleMkdir(args []byte) string {
	name := firstField(args)
	if name == "" {
		return "mkdir: Invalid arguments"
	}
	if err := d.engine.Mkdir(name); err != nil {
		return errorReply(err, "Failed to create directory")
	}
	return "Directory created successfully"
}

func (d *Dispatcher) handleRm(args []byte) string {
	name := firstField(args)
	if name == "" {
		return "rm: Invalid arguments"
	}
	if err := d.engine.Rm(name); err != nil {
		return errorReply(err, "Failed to remove file")
	}
	return "File removed successfully"
}

func (d *Dispatcher) handleRmdir(args []byte) string {
	name := firstField(args)
	if name == "" {
		return "rmdir: Invalid arguments"
	}
	if err := d.engine.Rmdir(name); err != nil {
		return errorReply(err, "Failed to remove directory")
	}
	return "Directory removed successfully"
}

func (d *Dispatcher) handleCd(args []byte) string {
	name := firstField(args)
	if name == "" {
		return "cd: Invalid arguments"
	}
	if err := d.engine.Cd(name); err != nil {
		return errorReply(err, "Failed to change directory")
	}
	return "Directory changed successfully"
}

func permString(perm uint16) string {
	switch perm {
	case fsengine.PermNone:
		return "---"
	case fsengine.PermRead:
		return "r--"
	case fsengine.PermWrite:
		return "rw-"
	default:
		return "???"
	}
}

func typeString(typ uint16) string {
	switch typ {
	case fsengine.TDir:
		return "DIR"
	case fsengine.TFile:
		return "FILE"
	default:
		return "UNKNOWN"
	}
}

func (d *Dispatcher) handleLs() string {
	entries, err := d.engine.Ls()
	if err != nil {
		return errorReply(err, "Failed to list")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-6s %-6s %-6s %s  %s          %s\n",
		"name", "type", "owner", "perm", "size(B)", "last modify", "create time")
	for _, ent := range entries {
		mtime := time.Unix(int64(ent.Mtime), 0).Format("2006-01-02 15:04:05")
		ctime := time.Unix(int64(ent.Ctime), 0).Format("2006-01-02 15:04:05")
		fmt.Fprintf(&b, "%-12s %-6s %-6d %-4s   %-6d   %s  %s\n",
			ent.Name, typeString(ent.Type), ent.Owner, permString(ent.Perm), ent.Size, mtime, ctime)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (d *Dispatcher) handleCat(args []byte) []byte {
	name := firstField(args)
	if name == "" {
		return []byte("cat: Invalid arguments")
	}
	data, err := d.engine.Cat(name)
	if err != nil {
		return []byte(errorReply(err, "Failed to read file"))
	}
	return data
}

func (d *Dispatcher) handleW(args []byte) string {
	fields := bytes.Fields(args)
	if len(fields) < 2 {
		return "w: Invalid arguments"
	}
	name := string(fields[0])
	length, err := strconv.ParseUint(string(fields[1]), 10, 32)
	if err != nil {
		return "w: Invalid arguments"
	}
	data, ok := skipFields(args, 2)
	if !ok || uint64(len(data)) < length {
		return "w: Invalid arguments"
	}
	if ferr := d.engine.W(name, uint32(length), data[:length]); ferr != nil {
		return errorReply(ferr, "Failed to write file")
	}
	return "Write file successfully"
}

func (d *Dispatcher) handleI(args []byte) string {
	fields := bytes.Fields(args)
	if len(fields) < 3 {
		return "i: Invalid arguments"
	}
	name := string(fields[0])
	pos, err1 := strconv.ParseUint(string(fields[1]), 10, 32)
	length, err2 := strconv.ParseUint(string(fields[2]), 10, 32)
	if err1 != nil || err2 != nil {
		return "i: Invalid arguments"
	}
	data, ok := skipFields(args, 3)
	if !ok || uint64(len(data)) < length {
		return "i: Invalid arguments"
	}
	if ferr := d.engine.I(name, uint32(pos), uint32(length), data[:length]); ferr != nil {
		return errorReply(ferr, "Failed to insert file")
	}
	return "Insert file successfully"
}

func (d *Dispatcher) handleD(args []byte) string {
	fields := bytes.Fields(args)
	if len(fields) != 3 {
		return "d: Invalid arguments"
	}
	name := string(fields[0])
	pos, err1 := strconv.ParseUint(string(fields[1]), 10, 32)
	length, err2 := strconv.ParseUint(string(fields[2]), 10, 32)
	if err1 != nil || err2 != nil {
		return "d: Invalid arguments"
	}
	if ferr := d.engine.D(name, uint32(pos), uint32(length)); ferr != nil {
		return errorReply(ferr, "Failed to delete content")
	}
	return "Delete file successfully"
}

func (d *Dispatcher) handleLogin(args []byte) string {
	field := firstField(args)
	uid, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return "Invalid argument"
	}
	switch ferr := d.engine.Login(uint32(uid)); {
	case ferr == nil:
		return "User login"
	case ferr.Kind == fsengine.PermissionDenied:
		return "User already logged in"
	default:
		return "Failed to login"
	}
}

// handleLogout returns the reply text and whether the connection should
// be force-disconnected, matching the original's "successful logout ends
// the session" behavior.
func (d *Dispatcher) handleLogout() (reply string, disconnect bool) {
	err := d.engine.Logout()
	if err == nil {
		return "User logout and directory deleted", true
	}
	switch err.Kind {
	case fsengine.PermissionDenied:
		return "Superuser cannot logout", false
	case fsengine.NotLoggedIn:
		return "Please login first", false
	default:
		return "Failed to logout", false
	}
}

func (d *Dispatcher) handleChmod(args []byte) string {
	fields := bytes.Fields(args)
	if len(fields) != 2 {
		return "chmod: Invalid arguments"
	}
	name := string(fields[0])
	perm, err := strconv.ParseUint(string(fields[1]), 10, 16)
	if err != nil {
		return "chmod: Invalid arguments"
	}
	if ferr := d.engine.Chmod(name, uint16(perm), false); ferr != nil {
		return errorReply(ferr, "Failed to change permission")
	}
	return "Change permission successfully"
}
