// Package storage writes downloaded media to the output tree.
//
// Every item lands in two places:
//
//	{root}/{category}/{handle}/{filename}
//	{root}/{category}/__all__/{filename}
//
// In copy mode both are physical files written from a single pass over the
// download stream. Hardlink and symlink modes store the bytes once under
// __all__ and link the uploader path to it.
//
// Writes go to temporary files in the destination directory and are renamed
// into place, so a failed download never leaves a partial file under a final
// name.
package storage
