package domain

// Archiver packs a directory tree into a compressed archive and back.
// Unpack must fail with ErrCorruptBackup (wrapped) when the archive cannot
// be read, never by silently producing a partial tree.
type Archiver interface {
	Pack(sourceDir, destPath string) error
	Unpack(sourcePath, destDir string) error
}
