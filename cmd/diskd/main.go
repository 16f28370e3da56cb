// Command diskd serves a simulated cylinder/sector block device over the
// disk wire protocol.
package main

func main() {
	Execute()
}
