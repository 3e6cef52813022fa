package storage

// Folder is a remote directory entry returned by ListFolders.
type Folder struct {
	Name string
}

// RemoteStorage is the off-box archive backend. Date folders live directly
// under the configured remote root; Remove with permanent=true bypasses any
// provider trash and is used by the retention sweep.
type RemoteStorage interface {
	// Mkdir creates a remote folder. Creating one that already exists is
	// not an error.
	Mkdir(path string) error
	// Upload copies a local file to the remote path.
	Upload(localPath, remotePath string) error
	// Move renames a remote object.
	Move(remotePath, newRemotePath string) error
	// ListFolders lists the folders directly under root.
	ListFolders(root string) ([]Folder, error)
	// Remove deletes a remote path and everything under it.
	Remove(path string, permanent bool) error
}
