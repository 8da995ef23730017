// Package ar reads and writes Unix ar archives, the container used by
// static libraries and Debian packages.
//
// An archive is the magic "!<arch>\n" followed by members, each a 60 byte
// ASCII header and the raw content it describes. Member content is opaque:
// GNU name tables, symbol tables and compressed payloads are returned as
// ordinary members.
//
// Decoder and Reader turn a byte stream into entries, Encoder does the
// reverse, and Archive indexes a file or S3 object so content can be read at
// computed offsets without loading it.
//
// By default content is not padded to an even length. WithAlignment enables
// the padding written by the system ar tools.
package ar
