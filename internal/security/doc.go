// Package security confines file operations on untrusted names to a root
// directory. The backup codec uses it to extract container entries into a
// private scratch directory without any entry name reaching outside it.
package security
