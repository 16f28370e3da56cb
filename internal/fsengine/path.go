package fsengine

import "strings"

// resolvePath splits path on '/' and walks it from root (absolute) or cwd
// (relative), resolving "." as a no-op and ".." via the parent entry.
// Returns nil if any component is missing. If path ends in a trailing
// slash or is otherwise component-less at the end, the last-component
// name returned is empty.
func (e *Engine) resolvePath(path string) (ip *inode, lastComponent string, ok bool) {
	if path == "" {
		return nil, "", false
	}

	if strings.HasPrefix(path, "/") {
		ip = e.iget(0)
	} else {
		ip = e.iget(e.cwd.Inum)
	}
	if ip == nil {
		return nil, "", false
	}

	parts := strings.Split(path, "/")
	var last string
	for _, p := range parts {
		if p == "" {
			continue
		}
		last = p

		switch p {
		case ".":
			// no-op
		case "..":
			_, inum, found := e.dirLookup(ip, "..")
			if !found {
				return nil, "", false
			}
			ip = e.iget(inum)
			if ip == nil {
				return nil, "", false
			}
		default:
			_, inum, found := e.dirLookup(ip, p)
			if !found {
				return nil, "", false
			}
			next := e.iget(inum)
			if next == nil {
				return nil, "", false
			}
			ip = next
		}
	}

	if strings.HasSuffix(path, "/") {
		last = ""
	}
	return ip, last, true
}
