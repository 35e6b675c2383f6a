package elf

import (
	"bytes"
	"fmt"

	"github.com/ianlancetaylor/demangle"

	"github.com/rvtools/rvelf/cursor"
)

// FileAddress is a virtual address as recorded in a symbol or section
// header; it is opaque arithmetic, never dereferenced by this module.
type FileAddress uint64

// Section is the common interface every section-header entry satisfies,
// regardless of its type. Most methods beyond Header/Name are internal
// wiring invoked once while the containing File is being assembled.
type Section interface {
	Header() SectionHeaderEntry
	Name() string

	// RawContent returns the section's bytes, or an error if the section
	// type has no byte-addressable content (e.g. NoBits).
	RawContent() ([]byte, error)

	bindSectionNameTable(names *StringTableSection)
	bindStringTable(table *StringTableSection)
	bindSymbolTable(table *SymbolTableSection)
}

// BaseSection implements the parts of Section common to every section type.
type BaseSection struct {
	header SectionHeaderEntry
	name   string
}

func newBaseSection(header SectionHeaderEntry) BaseSection {
	return BaseSection{header: header}
}

func (b *BaseSection) Header() SectionHeaderEntry {
	return b.header
}

func (b *BaseSection) Name() string {
	return b.name
}

func (b *BaseSection) bindSectionNameTable(names *StringTableSection) {
	b.name = names.Get(b.header.NameOffset)
}

func (*BaseSection) bindStringTable(*StringTableSection) {}
func (*BaseSection) bindSymbolTable(*SymbolTableSection)  {}

func (b *BaseSection) RawContent() ([]byte, error) {
	if b.header.Data == nil {
		return nil, fmt.Errorf("section %q has no addressable content", b.name)
	}
	return b.header.Data.Bytes(), nil
}

// newSection dispatches a freshly parsed section header to the concrete
// Section implementation for its type.
func newSection(header SectionHeaderEntry) (Section, error) {
	switch header.Type {
	case SectionTypeStringTable:
		return newStringTableSection(header), nil
	case SectionTypeSymbolTable, SectionTypeDynamicLinkerSymbolTable:
		return newSymbolTableSection(header)
	case SectionTypeNote:
		return newNoteSection(header)
	default:
		return newRawSection(header), nil
	}
}

// RawSection is used for every section type this module doesn't interpret
// structurally: program data, relocations, hash tables, dynamic linking
// info, and anything unrecognized. Its bytes are exposed as-is.
type RawSection struct {
	BaseSection
}

func newRawSection(header SectionHeaderEntry) *RawSection {
	return &RawSection{BaseSection: newBaseSection(header)}
}

// StringTableSection is a null-terminated-string blob indexed by byte
// offset, e.g. .shstrtab, .strtab, .dynstr.
type StringTableSection struct {
	BaseSection

	data *cursor.ByteCursor
}

func newStringTableSection(header SectionHeaderEntry) *StringTableSection {
	return &StringTableSection{
		BaseSection: newBaseSection(header),
		data:        header.Data,
	}
}

// Get returns the null-terminated string starting at byte offset index, or
// "" if index is out of range, no terminator follows index, or the table
// has no backing bytes (an empty .shstrtab, for instance).
func (t *StringTableSection) Get(index uint32) string {
	if t.data == nil || index >= uint32(t.data.Size()) {
		return ""
	}
	if bytes.IndexByte(t.data.Bytes()[index:], 0) == -1 {
		return ""
	}

	t.data.Seek(int(index))
	return t.data.PopNullString()
}

// NumEntries counts null-terminated entries in the table, excluding the
// mandatory leading empty string at index 0.
func (t *StringTableSection) NumEntries() int {
	if t.data == nil {
		return 0
	}

	count := 0
	content := t.data.Bytes()
	if len(content) > 0 {
		content = content[1:]
	}
	for _, b := range content {
		if b == 0 {
			count++
		}
	}
	return count
}

// Symbol is one entry of a SymbolTableSection: a 32-bit name offset, an
// info/other byte pair, a 16-bit section index, and a 64-bit value/size
// pair — the fixed 24-byte Elf64_Sym layout.
type Symbol struct {
	NameOffset   uint32
	Info         byte
	Other        byte
	SectionIndex uint16
	Value        uint64
	Size         uint64

	Name          string
	DemangledName string
}

// PrettyName returns the demangled C++/Rust name when one could be
// computed, else the raw symbol name.
func (s Symbol) PrettyName() string {
	if s.DemangledName != "" {
		return s.DemangledName
	}
	return s.Name
}

func (s Symbol) Type() SymbolType {
	return symbolInfoToType(s.Info)
}

func (s Symbol) Binding() SymbolBinding {
	return symbolInfoToBinding(s.Info)
}

// AddressRange returns [start, end) for symbols that plausibly occupy
// memory: a nonzero value, a name, and not a TLS object (whose Value is an
// offset into the TLS block, not a file address).
func (s Symbol) AddressRange() (FileAddress, FileAddress, bool) {
	if s.Value == 0 || s.NameOffset == 0 || s.Type() == SymbolTypeTLS {
		return 0, 0, false
	}

	start := FileAddress(s.Value)
	end := FileAddress(s.Value + s.Size)
	return start, end, true
}

// SymbolTableSection is .symtab or .dynsym.
type SymbolTableSection struct {
	BaseSection

	Symbols []*Symbol

	stringTable *StringTableSection
}

func newSymbolTableSection(header SectionHeaderEntry) (*SymbolTableSection, error) {
	table := &SymbolTableSection{BaseSection: newBaseSection(header)}

	if header.Data == nil {
		return table, nil
	}

	size := header.Data.Size()
	if size%SymbolEntrySize != 0 {
		return nil, fmt.Errorf("invalid symbol table size (%d)", size)
	}

	count := size / SymbolEntrySize
	symbols := make([]*Symbol, 0, count)
	for i := 0; i < count; i++ {
		header.Data.Seek(i * SymbolEntrySize)
		symbols = append(symbols, &Symbol{
			NameOffset:   header.Data.PopU32(),
			Info:         header.Data.PopU8(),
			Other:        header.Data.PopU8(),
			SectionIndex: header.Data.PopU16(),
			Value:        header.Data.PopU64(),
			Size:         header.Data.PopU64(),
		})
	}

	table.Symbols = symbols
	return table, nil
}

func (t *SymbolTableSection) bindStringTable(names *StringTableSection) {
	t.stringTable = names
	for _, symbol := range t.Symbols {
		symbol.Name = names.Get(symbol.NameOffset)
		demangled, err := demangle.ToString(symbol.Name)
		if err == nil {
			symbol.DemangledName = demangled
		}
	}
}

// SymbolsByName matches against both the raw and demangled name.
func (t *SymbolTableSection) SymbolsByName(name string) []*Symbol {
	var result []*Symbol
	for _, symbol := range t.Symbols {
		if symbol.Name == name || symbol.DemangledName == name {
			result = append(result, symbol)
		}
	}
	return result
}

func (t *SymbolTableSection) SymbolAt(address FileAddress) *Symbol {
	for _, symbol := range t.Symbols {
		low, _, ok := symbol.AddressRange()
		if ok && low == address {
			return symbol
		}
	}
	return nil
}

func (t *SymbolTableSection) SymbolSpans(address FileAddress) *Symbol {
	for _, symbol := range t.Symbols {
		low, high, ok := symbol.AddressRange()
		if ok && low <= address && address < high {
			return symbol
		}
	}
	return nil
}

// NoteEntry is one record of an SHT_NOTE section.
type NoteEntry struct {
	Name        string
	Description []byte
	Type        uint32
}

type NoteSection struct {
	BaseSection

	Entries []NoteEntry
}

// newNoteSection parses a sequence of Elf32_Nhdr-shaped records (64-bit
// objects use the same 4-byte-aligned layout for notes) out of the
// section's sub-cursor.
func newNoteSection(header SectionHeaderEntry) (*NoteSection, error) {
	section := &NoteSection{BaseSection: newBaseSection(header)}
	if header.Data == nil {
		return section, nil
	}

	data := header.Data
	for data.Index() < data.Size() {
		if data.Index()+NoteHeaderSize > data.Size() {
			return nil, fmt.Errorf("truncated note header")
		}

		nameSize := data.PopU32()
		descSize := data.PopU32()
		noteType := data.PopU32()

		if data.Index()+align4(int(nameSize)) > data.Size() {
			return nil, fmt.Errorf("truncated note name")
		}
		nameStart := data.Index()
		nameBytes := data.Bytes()[nameStart : nameStart+int(nameSize)]
		if len(nameBytes) > 0 && nameBytes[len(nameBytes)-1] == 0 {
			nameBytes = nameBytes[:len(nameBytes)-1]
		}
		name := string(nameBytes)
		data.Seek(nameStart + align4(int(nameSize)))

		if data.Index()+align4(int(descSize)) > data.Size() {
			return nil, fmt.Errorf("truncated note description")
		}
		descStart := data.Index()
		desc := append([]byte(nil), data.Bytes()[descStart:descStart+int(descSize)]...)
		data.Seek(descStart + align4(int(descSize)))

		section.Entries = append(section.Entries, NoteEntry{
			Name:        name,
			Description: desc,
			Type:        noteType,
		})
	}

	return section, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}
