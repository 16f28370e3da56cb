// Command fsd serves the UNIX-style file system over the file-system wire
// protocol, fronting a disk service reached over the disk wire protocol.
package main

func main() {
	Execute()
}
