package ar

// Header field widths in bytes, in the order they appear on the wire.
const (
	MagicSize   = 8
	NameSize    = 16
	ModTimeSize = 12
	OwnerIDSize = 6
	GroupIDSize = 6
	ModeSize    = 8
	SizeSize    = 10
	EndSize     = 2

	HeaderSize = NameSize + ModTimeSize + OwnerIDSize + GroupIDSize + ModeSize + SizeSize + EndSize
)

const (
	Magic     = "!<arch>\n"
	HeaderEnd = "`\n"
)

// padByte follows odd sized content when alignment is enabled.
const padByte = '\n'

type field struct {
	name    string
	width   int
	decimal bool
}

// fields lists the six metadata fields of a header. The end marker follows
// them and is not part of the table.
var fields = [...]field{
	{"name", NameSize, false},
	{"mtime", ModTimeSize, true},
	{"uid", OwnerIDSize, true},
	{"gid", GroupIDSize, true},
	{"mode", ModeSize, false},
	{"size", SizeSize, true},
}
