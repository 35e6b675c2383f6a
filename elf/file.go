package elf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rvtools/rvelf/cursor"
)

// File is the parsed ELF object model: the header plus the two ordered
// sequences the gABI defines, in file order.
type File struct {
	Header
	ProgramHeaders []ProgramHeaderEntry
	Sections       []Section
}

type parser struct {
	content []byte
	cursor  *cursor.ByteCursor

	File
}

func Parse(reader io.Reader) (*File, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read elf file: %w", err)
	}

	return ParseBytes(content)
}

func ParseBytes(content []byte) (*File, error) {
	p := &parser{
		content: content,
		cursor:  cursor.New(content),
	}

	err := p.parse()
	if err != nil {
		return nil, err
	}

	return &p.File, nil
}

func (p *parser) parse() error {
	// The identification prefix has no endianness of its own. It determines
	// the endianness of every multibyte field that follows it.
	err := p.parseIdentifier()
	if err != nil {
		return err
	}

	err = p.parseHeader()
	if err != nil {
		return err
	}

	err = p.parseProgramHeaders()
	if err != nil {
		return err
	}

	err = p.parseSectionHeaders()
	if err != nil {
		return err
	}

	return nil
}

func (p *parser) parseIdentifier() error {
	if len(p.content) < IdentifierSize {
		return fmt.Errorf("truncated identifier: need %d bytes, have %d",
			IdentifierSize, len(p.content))
	}

	id := p.content[:IdentifierSize]
	if !bytes.Equal(id[:4], identifierMagic[:]) {
		return fmt.Errorf("invalid elf magic number: %x", id[:4])
	}

	class := Class(id[4])
	if class != Class32 && class != Class64 {
		return fmt.Errorf("unsupported elf class: %d", id[4])
	}
	p.Class = class

	data := DataEncoding(id[5])
	switch data {
	case LittleEndian:
		p.cursor.SetEndianness(cursor.LittleEndian)
	case BigEndian:
		p.cursor.SetEndianness(cursor.BigEndian)
	default:
		return fmt.Errorf("unsupported data encoding: %d", id[5])
	}
	p.Data = data

	if id[6] != IdentifierVersion {
		return fmt.Errorf("unsupported identifier version: %d", id[6])
	}

	osabi := OSABI(id[7])
	if !osabi.Valid() {
		return fmt.Errorf("unsupported os/abi: %d", id[7])
	}
	p.OSABI = osabi
	p.ABIVersion = id[8]

	p.cursor.Seek(IdentifierSize)
	return nil
}

func (p *parser) parseHeader() error {
	headerSize := Elf64HeaderSize
	if p.Class == Class32 {
		headerSize = Elf32HeaderSize
	}
	if p.cursor.Size() < headerSize {
		return fmt.Errorf("truncated header: need %d bytes, have %d",
			headerSize, p.cursor.Size())
	}

	p.Type = FileType(p.cursor.PopU16())
	p.Machine = Machine(p.cursor.PopU16())

	version := p.cursor.PopU32()
	if version != IdentifierVersion {
		return fmt.Errorf("unsupported format version: %d", version)
	}

	if p.Class == Class64 {
		p.Entry = p.cursor.PopU64()
		p.ProgramHeaderOffset = p.cursor.PopU64()
		p.SectionHeaderOffset = p.cursor.PopU64()
	} else {
		p.Entry = uint64(p.cursor.PopU32())
		p.ProgramHeaderOffset = uint64(p.cursor.PopU32())
		p.SectionHeaderOffset = uint64(p.cursor.PopU32())
	}

	p.Flags = p.cursor.PopU32()
	p.HeaderSize = p.cursor.PopU16()
	p.ProgramHeaderEntrySize = p.cursor.PopU16()
	p.ProgramHeaderCount = p.cursor.PopU16()
	p.SectionHeaderEntrySize = p.cursor.PopU16()
	p.SectionHeaderCount = p.cursor.PopU16()
	p.SectionNameTableIndex = p.cursor.PopU16()

	if int(p.HeaderSize) != headerSize {
		return fmt.Errorf("unexpected header size for %s: %d", p.Class, p.HeaderSize)
	}

	// Extended section header count/index (SHN_XINDEX) is out of scope; most
	// tooling that consumes st_shndx doesn't support it either.
	if p.SectionHeaderOffset > 0 && p.SectionHeaderCount == 0 {
		return fmt.Errorf("extended section header count not supported")
	}

	return nil
}

// boundsCheck reports an error, rather than panicking, when a range derived
// from untrusted header fields would run off the end of the file. Only
// after this check passes is it safe to hand the range to the cursor.
func (p *parser) boundsCheck(offset, size uint64) error {
	end := offset + size
	if end < offset || end > uint64(len(p.content)) {
		return fmt.Errorf("out of bound range [%d:%d), file size %d",
			offset, end, len(p.content))
	}
	return nil
}

func (p *parser) parseProgramHeaders() error {
	if p.ProgramHeaderCount == 0 {
		return nil
	}

	minEntrySize := Elf64ProgramHeaderEntrySize
	if p.Class == Class32 {
		minEntrySize = Elf32ProgramHeaderEntrySize
	}
	if int(p.ProgramHeaderEntrySize) < minEntrySize {
		return fmt.Errorf("program header entry too small for %s: %d",
			p.Class, p.ProgramHeaderEntrySize)
	}

	entries := make([]ProgramHeaderEntry, 0, p.ProgramHeaderCount)
	for i := 0; i < int(p.ProgramHeaderCount); i++ {
		offset := p.ProgramHeaderOffset + uint64(i)*uint64(p.ProgramHeaderEntrySize)
		err := p.boundsCheck(offset, uint64(minEntrySize))
		if err != nil {
			return fmt.Errorf("program header %d: %w", i, err)
		}

		p.cursor.Seek(int(offset))

		var entry ProgramHeaderEntry
		if p.Class == Class64 {
			entry = ProgramHeaderEntry{
				Type:            SegmentType(p.cursor.PopU32()),
				Flags:           SegmentFlags(p.cursor.PopU32()),
				FileOffset:      p.cursor.PopU64(),
				VirtualAddress:  p.cursor.PopU64(),
				PhysicalAddress: p.cursor.PopU64(),
				FileSize:        p.cursor.PopU64(),
				MemorySize:      p.cursor.PopU64(),
				Alignment:       p.cursor.PopU64(),
			}
		} else {
			entry = ProgramHeaderEntry{
				Type:            SegmentType(p.cursor.PopU32()),
				FileOffset:      uint64(p.cursor.PopU32()),
				VirtualAddress:  uint64(p.cursor.PopU32()),
				PhysicalAddress: uint64(p.cursor.PopU32()),
				FileSize:        uint64(p.cursor.PopU32()),
				MemorySize:      uint64(p.cursor.PopU32()),
				Flags:           SegmentFlags(p.cursor.PopU32()),
				Alignment:       uint64(p.cursor.PopU32()),
			}
		}

		entries = append(entries, entry)
	}

	p.ProgramHeaders = entries
	return nil
}

func (p *parser) parseSectionHeaders() error {
	if p.SectionHeaderCount == 0 {
		return nil
	}

	minEntrySize := Elf64SectionHeaderEntrySize
	if p.Class == Class32 {
		minEntrySize = Elf32SectionHeaderEntrySize
	}
	if int(p.SectionHeaderEntrySize) < minEntrySize {
		return fmt.Errorf("section header entry too small for %s: %d",
			p.Class, p.SectionHeaderEntrySize)
	}

	headers := make([]SectionHeaderEntry, 0, p.SectionHeaderCount)
	for i := 0; i < int(p.SectionHeaderCount); i++ {
		offset := p.SectionHeaderOffset + uint64(i)*uint64(p.SectionHeaderEntrySize)
		err := p.boundsCheck(offset, uint64(minEntrySize))
		if err != nil {
			return fmt.Errorf("section header %d: %w", i, err)
		}

		p.cursor.Seek(int(offset))

		var header SectionHeaderEntry
		if p.Class == Class64 {
			header = SectionHeaderEntry{
				NameOffset: p.cursor.PopU32(),
				Type:       SectionType(p.cursor.PopU32()),
				Flags:      SectionFlags(p.cursor.PopU64()),
				Address:    p.cursor.PopU64(),
				Offset:     p.cursor.PopU64(),
				Size:       p.cursor.PopU64(),
				Link:       p.cursor.PopU32(),
				Info:       p.cursor.PopU32(),
				Alignment:  p.cursor.PopU64(),
				EntrySize:  p.cursor.PopU64(),
			}
		} else {
			header = SectionHeaderEntry{
				NameOffset: p.cursor.PopU32(),
				Type:       SectionType(p.cursor.PopU32()),
				Flags:      SectionFlags(p.cursor.PopU32()),
				Address:    uint64(p.cursor.PopU32()),
				Offset:     uint64(p.cursor.PopU32()),
				Size:       uint64(p.cursor.PopU32()),
				Link:       p.cursor.PopU32(),
				Info:       p.cursor.PopU32(),
				Alignment:  uint64(p.cursor.PopU32()),
				EntrySize:  uint64(p.cursor.PopU32()),
			}
		}

		if header.Type != SectionTypeNoBits {
			err := p.boundsCheck(header.Offset, header.Size)
			if err != nil {
				return fmt.Errorf("section %d content: %w", i, err)
			}
			header.Data = p.cursor.Slice(
				int(header.Offset), int(header.Offset+header.Size))
		}

		headers = append(headers, header)
	}

	sections := make([]Section, 0, len(headers))
	for _, header := range headers {
		section, err := newSection(header)
		if err != nil {
			return err
		}
		sections = append(sections, section)
	}
	p.Sections = sections

	return p.bindSections()
}

// bindSections wires up section-name lookups and the sh_link/sh_info
// relationships. See the gABI's Figure 1-12, "sh_link and sh_info
// Interpretation".
func (p *parser) bindSections() error {
	if int(p.SectionNameTableIndex) >= len(p.Sections) {
		return fmt.Errorf("section name table index out of bound (%d >= %d)",
			p.SectionNameTableIndex, len(p.Sections))
	}

	nameTable, ok := p.Sections[p.SectionNameTableIndex].(*StringTableSection)
	if !ok {
		return fmt.Errorf("section name table index does not point to a string table")
	}

	for _, section := range p.Sections {
		section.bindSectionNameTable(nameTable)
	}

	for _, section := range p.Sections {
		header := section.Header()
		if header.Link == 0 {
			continue
		}

		switch header.Type {
		case SectionTypeDynamicLinkingInfo,
			SectionTypeSymbolTable,
			SectionTypeDynamicLinkerSymbolTable:

			if int(header.Link) >= len(p.Sections) {
				return fmt.Errorf("string table index out of bound (%d >= %d)",
					header.Link, len(p.Sections))
			}

			table, ok := p.Sections[header.Link].(*StringTableSection)
			if !ok {
				return fmt.Errorf("string table index does not point to a string table")
			}
			section.bindStringTable(table)

		case SectionTypeSymbolHashTable,
			SectionTypeRelocationWithAddends,
			SectionTypeRelocation:

			if int(header.Link) >= len(p.Sections) {
				return fmt.Errorf("symbol table index out of bound (%d >= %d)",
					header.Link, len(p.Sections))
			}

			table, ok := p.Sections[header.Link].(*SymbolTableSection)
			if !ok {
				return fmt.Errorf("symbol table index (%d) does not point to a symbol table",
					header.Link)
			}
			section.bindSymbolTable(table)
		}
	}

	return nil
}

// GetSection returns the section with the given (already resolved) name.
func (f *File) GetSection(name string) (Section, bool) {
	for _, section := range f.Sections {
		if section.Name() == name {
			return section, true
		}
	}
	return nil, false
}

// GetSectionNameStringTable returns the string table e_shstrndx points at.
// This is the safe alternative to GetStringTable flagged by spec's open
// question on string-table selection: e_shstrndx is authoritative, whereas
// scanning for "the unique zero-flag StringTable" over-rejects files where
// .strtab/.dynstr also happen to carry no flags.
func (f *File) GetSectionNameStringTable() (*StringTableSection, error) {
	if int(f.SectionNameTableIndex) >= len(f.Sections) {
		return nil, fmt.Errorf("section name table index out of bound (%d >= %d)",
			f.SectionNameTableIndex, len(f.Sections))
	}

	table, ok := f.Sections[f.SectionNameTableIndex].(*StringTableSection)
	if !ok {
		return nil, fmt.Errorf("section name table index does not point to a string table")
	}
	return table, nil
}

// GetStringTable implements the literal scan-for-the-unique-unflagged-
// StringTable contract: return the section whose type is StringTable and
// whose flags are zero, erroring if more than one such section exists.
func (f *File) GetStringTable() (*StringTableSection, error) {
	var found *StringTableSection
	for _, section := range f.Sections {
		header := section.Header()
		if header.Type != SectionTypeStringTable || header.Flags != 0 {
			continue
		}

		table, ok := section.(*StringTableSection)
		if !ok {
			continue
		}

		if found != nil {
			return nil, fmt.Errorf("ambiguous string table: multiple unflagged StringTable sections")
		}
		found = table
	}

	if found == nil {
		return nil, fmt.Errorf("no unflagged string table found")
	}
	return found, nil
}

// GetSectionByName seeks the section-name string table's sub-cursor to each
// candidate section's name offset and compares for exact byte equality.
// Returns the first match, or false if none.
func (f *File) GetSectionByName(name string) (Section, bool) {
	nameTable, err := f.GetSectionNameStringTable()
	if err != nil {
		return nil, false
	}

	for _, section := range f.Sections {
		if nameTable.Get(section.Header().NameOffset) == name {
			return section, true
		}
	}
	return nil, false
}

// GetSymbolTable returns .symtab if present, else .dynsym, else none.
func (f *File) GetSymbolTable() (*SymbolTableSection, bool) {
	var symtab, dynsym *SymbolTableSection
	for _, section := range f.Sections {
		table, ok := section.(*SymbolTableSection)
		if !ok {
			continue
		}
		switch table.Header().Type {
		case SectionTypeSymbolTable:
			symtab = table
		case SectionTypeDynamicLinkerSymbolTable:
			dynsym = table
		}
	}

	if symtab != nil {
		return symtab, true
	}
	if dynsym != nil {
		return dynsym, true
	}
	return nil, false
}

// SymbolLocation is the result of GetSymbolLocation: a symbol's address and
// size, the two fields needed to bound its memory image.
type SymbolLocation struct {
	Value uint64
	Size  uint64
}

// GetSymbolLocation resolves a symbol by exact name, matching spec.md
// §4.4's algorithm precisely: acquire the symbol table, pick its companion
// string table by type, require a 24-byte symbol entry size, and scan
// symt.size/24 entries for the first exact-name match.
func (f *File) GetSymbolLocation(name string) (SymbolLocation, bool, error) {
	symtab, ok := f.GetSymbolTable()
	if !ok {
		return SymbolLocation{}, false, fmt.Errorf("no symbol table present")
	}

	var stringTableName string
	switch symtab.Header().Type {
	case SectionTypeSymbolTable:
		stringTableName = ".strtab"
	case SectionTypeDynamicLinkerSymbolTable:
		stringTableName = ".dynstr"
	default:
		return SymbolLocation{}, false, fmt.Errorf(
			"unexpected symbol table section type: %s", symtab.Header().Type)
	}

	stringTableSection, ok := f.GetSection(stringTableName)
	if !ok {
		return SymbolLocation{}, false, fmt.Errorf(
			"missing companion string table %q", stringTableName)
	}
	stringTable, ok := stringTableSection.(*StringTableSection)
	if !ok {
		return SymbolLocation{}, false, fmt.Errorf(
			"%q is not a string table", stringTableName)
	}

	if symtab.Header().EntrySize != SymbolEntrySize {
		return SymbolLocation{}, false, fmt.Errorf(
			"unexpected symbol entry size: %d", symtab.Header().EntrySize)
	}

	for _, symbol := range symtab.Symbols {
		resolvedName := stringTable.Get(symbol.NameOffset)
		if resolvedName == name {
			return SymbolLocation{Value: symbol.Value, Size: symbol.Size}, true, nil
		}
	}

	return SymbolLocation{}, false, nil
}
