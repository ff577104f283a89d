// Package fs carries the filesystem collaborator types the core
// holds references to: open files and in-core inodes, both
// refcounted, plus the buffer cache skeleton built at boot.
package fs

import "linux01/defs"

/// NR_FILE is the system-wide open file table size.
const NR_FILE = 64

/// NR_INODE is the in-core inode table size.
const NR_INODE = 32

/// Inode_t is an in-core inode handle.
type Inode_t struct {
	Dev   int
	Num   int
	Count int
	Dirt  bool
}

/// File_t is one entry of the system open file table.
type File_t struct {
	Mode  uint16
	Flags uint16
	Count int
	Inode *Inode_t
	Pos   int
}

var inode_table [NR_INODE]Inode_t

/// File_table is the system-wide open file table.
var File_table [NR_FILE]File_t

/// Iget returns the in-core inode for (dev, nr), taking a reference.
func Iget(dev, nr int) *Inode_t {
	var empty *Inode_t
	for i := range inode_table {
		ip := &inode_table[i]
		if ip.Count == 0 {
			if empty == nil {
				empty = ip
			}
			continue
		}
		if ip.Dev == dev && ip.Num == nr {
			ip.Count++
			return ip
		}
	}
	if empty == nil {
		return nil
	}
	*empty = Inode_t{Dev: dev, Num: nr, Count: 1}
	return empty
}

/// Idup takes another reference on an inode.
func (ip *Inode_t) Idup() {
	if ip.Count <= 0 {
		panic("idup of free inode")
	}
	ip.Count++
}

/// Iput releases one reference.
func (ip *Inode_t) Iput() {
	if ip == nil {
		return
	}
	if ip.Count == 0 {
		panic("iput of free inode")
	}
	ip.Count--
}

/// Get_empty_filp finds a free open-file slot.
func Get_empty_filp() (*File_t, defs.Err_t) {
	for i := range File_table {
		f := &File_table[i]
		if f.Count == 0 {
			*f = File_t{Count: 1}
			return f, 0
		}
	}
	return nil, -defs.EAGAIN
}

/// Dup takes another reference on an open file.
func (f *File_t) Dup() {
	if f.Count <= 0 {
		panic("dup of free file")
	}
	f.Count++
}

/// Put releases one open-file reference, dropping the inode when the
/// last goes away.
func (f *File_t) Put() {
	if f.Count == 0 {
		panic("put of free file")
	}
	f.Count--
	if f.Count == 0 && f.Inode != nil {
		f.Inode.Iput()
		f.Inode = nil
	}
}
