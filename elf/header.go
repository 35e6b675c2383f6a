// Package elf reads 32/64-bit ELF object files from an immutable byte
// buffer into a navigable object model, following the ELF64 gABI.
//
// Based on linux's man pages, elf.h, and golang's debug/elf package.
package elf

import (
	"fmt"

	"github.com/rvtools/rvelf/cursor"
)

const (
	IdentifierSize = 16 // e_ident[EI_NIDENT]

	IdentifierVersion = 1 // EI_VERSION / EV_CURRENT

	Elf32HeaderSize = 52
	Elf64HeaderSize = 64

	Elf32ProgramHeaderEntrySize = 32
	Elf64ProgramHeaderEntrySize = 56

	Elf32SectionHeaderEntrySize = 40
	Elf64SectionHeaderEntrySize = 64

	SymbolEntrySize = 24 // Elf64_Sym. See GetSymbolLocation.

	NoteHeaderSize = 12

	SectionIndexUndefined = 0 // SHN_UNDEF
)

var identifierMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// EI_CLASS
type Class byte

const (
	Class32 = Class(1) // ELFCLASS32
	Class64 = Class(2) // ELFCLASS64
)

func (c Class) String() string {
	switch c {
	case Class32:
		return "Class32"
	case Class64:
		return "Class64"
	default:
		return fmt.Sprintf("ClassUnknown(%d)", byte(c))
	}
}

// EI_DATA
type DataEncoding byte

const (
	LittleEndian = DataEncoding(1) // ELFDATA2LSB
	BigEndian    = DataEncoding(2) // ELFDATA2MSB
)

func (d DataEncoding) String() string {
	switch d {
	case LittleEndian:
		return "LittleEndian"
	case BigEndian:
		return "BigEndian"
	default:
		return fmt.Sprintf("DataEncodingUnknown(%d)", byte(d))
	}
}

// EI_OSABI
type OSABI byte

const (
	OSABISystemV        = OSABI(0x00)
	OSABIHPUX           = OSABI(0x01)
	OSABINetBSD         = OSABI(0x02)
	OSABILinux          = OSABI(0x03)
	OSABIGNUHurd        = OSABI(0x04)
	OSABISolaris        = OSABI(0x06)
	OSABIAIX            = OSABI(0x07)
	OSABIIRIX           = OSABI(0x08)
	OSABIFreeBSD        = OSABI(0x09)
	OSABITru64          = OSABI(0x0A)
	OSABINovellModesto  = OSABI(0x0B)
	OSABIOpenBSD        = OSABI(0x0C)
	OSABIOpenVMS        = OSABI(0x0D)
	OSABINonStopKernel  = OSABI(0x0E)
	OSABIAROS           = OSABI(0x0F)
	OSABIFenixOS        = OSABI(0x10)
	OSABINuxiCloudABI   = OSABI(0x11)
	OSABIStratusOpenVOS = OSABI(0x12)
)

func (a OSABI) Valid() bool {
	return a <= OSABIStratusOpenVOS
}

func (a OSABI) String() string {
	switch a {
	case OSABISystemV:
		return "SystemV"
	case OSABIHPUX:
		return "HP-UX"
	case OSABINetBSD:
		return "NetBSD"
	case OSABILinux:
		return "Linux"
	case OSABIGNUHurd:
		return "GNUHurd"
	case OSABISolaris:
		return "Solaris"
	case OSABIAIX:
		return "AIX"
	case OSABIIRIX:
		return "IRIX"
	case OSABIFreeBSD:
		return "FreeBSD"
	case OSABITru64:
		return "Tru64"
	case OSABINovellModesto:
		return "NovellModesto"
	case OSABIOpenBSD:
		return "OpenBSD"
	case OSABIOpenVMS:
		return "OpenVMS"
	case OSABINonStopKernel:
		return "NonStopKernel"
	case OSABIAROS:
		return "AROS"
	case OSABIFenixOS:
		return "FenixOS"
	case OSABINuxiCloudABI:
		return "NuxiCloudABI"
	case OSABIStratusOpenVOS:
		return "StratusOpenVOS"
	default:
		return fmt.Sprintf("OSABIUnknown(%#x)", byte(a))
	}
}

// e_type
type FileType uint16

const (
	FileTypeNone         = FileType(0)
	FileTypeRelocatable  = FileType(1)
	FileTypeExecutable   = FileType(2)
	FileTypeSharedObject = FileType(3)
	FileTypeCore         = FileType(4)
)

func (t FileType) String() string {
	switch t {
	case FileTypeNone:
		return "None"
	case FileTypeRelocatable:
		return "Relocatable"
	case FileTypeExecutable:
		return "Executable"
	case FileTypeSharedObject:
		return "SharedObject"
	case FileTypeCore:
		return "Core"
	default:
		return fmt.Sprintf("FileTypeUnknown(%d)", uint16(t))
	}
}

// e_machine. The catalog is kept complete for display purposes even though
// only RISC-V is decoded structurally by the riscv package.
type Machine uint16

const (
	MachineNone      = Machine(0x00)
	MachineSPARC     = Machine(0x02)
	MachineX86       = Machine(0x03)
	MachineMIPS      = Machine(0x08)
	MachinePowerPC   = Machine(0x14)
	MachinePowerPC64 = Machine(0x15)
	MachineS390      = Machine(0x16)
	MachineARM       = Machine(0x28)
	MachineSuperH    = Machine(0x2A)
	MachineIA64      = Machine(0x32)
	MachineX86_64    = Machine(0x3E)
	MachineAArch64   = Machine(0xB7)
	MachineRISCV     = Machine(0xF3)
	MachineBPF       = Machine(0xF7)
	MachineLoongArch = Machine(0x102)
)

func (m Machine) String() string {
	switch m {
	case MachineNone:
		return "None"
	case MachineSPARC:
		return "SPARC"
	case MachineX86:
		return "x86"
	case MachineMIPS:
		return "MIPS"
	case MachinePowerPC:
		return "PowerPC"
	case MachinePowerPC64:
		return "PowerPC64"
	case MachineS390:
		return "S390"
	case MachineARM:
		return "ARM"
	case MachineSuperH:
		return "SuperH"
	case MachineIA64:
		return "IA-64"
	case MachineX86_64:
		return "x86-64"
	case MachineAArch64:
		return "AArch64"
	case MachineRISCV:
		return "RISC-V"
	case MachineBPF:
		return "BPF"
	case MachineLoongArch:
		return "LoongArch"
	default:
		return fmt.Sprintf("MachineUnknown(%#x)", uint16(m))
	}
}

// p_type
type SegmentType uint32

const (
	SegmentNull               = SegmentType(0x0)
	SegmentLoadable           = SegmentType(0x1)
	SegmentDynamic            = SegmentType(0x2)
	SegmentInterpreter        = SegmentType(0x3)
	SegmentNote               = SegmentType(0x4)
	SegmentSharedLib          = SegmentType(0x5)
	SegmentProgramHeader      = SegmentType(0x6)
	SegmentThreadLocalStorage = SegmentType(0x7)
	SegmentGNUEHFrame         = SegmentType(0x6474E550)
	SegmentGNUStack           = SegmentType(0x6474E551)
	SegmentGNURelro           = SegmentType(0x6474E552)
)

func (t SegmentType) String() string {
	switch t {
	case SegmentNull:
		return "Null"
	case SegmentLoadable:
		return "Loadable"
	case SegmentDynamic:
		return "Dynamic"
	case SegmentInterpreter:
		return "Interpreter"
	case SegmentNote:
		return "Note"
	case SegmentSharedLib:
		return "SharedLib"
	case SegmentProgramHeader:
		return "ProgramHeader"
	case SegmentThreadLocalStorage:
		return "ThreadLocalStorage"
	case SegmentGNUEHFrame:
		return "GNUEHFrame"
	case SegmentGNUStack:
		return "GNUStack"
	case SegmentGNURelro:
		return "GNURelro"
	default:
		return fmt.Sprintf("SegmentTypeUnknown(%#x)", uint32(t))
	}
}

// p_flags. Bit 0 is X, bit 1 is W, bit 2 is R, per the gABI.
type SegmentFlags uint32

const (
	SegmentFlagExecutable = SegmentFlags(0x1) // PF_X
	SegmentFlagWritable   = SegmentFlags(0x2) // PF_W
	SegmentFlagReadable   = SegmentFlags(0x4) // PF_R
)

func (f SegmentFlags) String() string {
	rwx := []byte{'-', '-', '-'}
	if f&SegmentFlagReadable != 0 {
		rwx[0] = 'r'
	}
	if f&SegmentFlagWritable != 0 {
		rwx[1] = 'w'
	}
	if f&SegmentFlagExecutable != 0 {
		rwx[2] = 'x'
	}
	return string(rwx)
}

// sh_type
type SectionType uint32

const (
	SectionTypeNull                     = SectionType(0x00)
	SectionTypeProgramData              = SectionType(0x01)
	SectionTypeSymbolTable              = SectionType(0x02)
	SectionTypeStringTable              = SectionType(0x03)
	SectionTypeRelocationWithAddends    = SectionType(0x04)
	SectionTypeSymbolHashTable          = SectionType(0x05)
	SectionTypeDynamicLinkingInfo       = SectionType(0x06)
	SectionTypeNote                     = SectionType(0x07)
	SectionTypeNoBits                   = SectionType(0x08)
	SectionTypeRelocation               = SectionType(0x09)
	SectionTypeReserved                 = SectionType(0x0A)
	SectionTypeDynamicLinkerSymbolTable = SectionType(0x0B)
	SectionTypeConstructorArray         = SectionType(0x0E)
	SectionTypeDestructorArray          = SectionType(0x0F)
	SectionTypePreConstructorArray      = SectionType(0x10)
	SectionTypeGroup                    = SectionType(0x11)
	SectionTypeExtendedIndices          = SectionType(0x12)
)

func (t SectionType) String() string {
	switch t {
	case SectionTypeNull:
		return "Null"
	case SectionTypeProgramData:
		return "ProgramData"
	case SectionTypeSymbolTable:
		return "SymbolTable"
	case SectionTypeStringTable:
		return "StringTable"
	case SectionTypeRelocationWithAddends:
		return "RelocationWithAddends"
	case SectionTypeSymbolHashTable:
		return "SymbolHashTable"
	case SectionTypeDynamicLinkingInfo:
		return "DynamicLinkingInfo"
	case SectionTypeNote:
		return "Note"
	case SectionTypeNoBits:
		return "NoBits"
	case SectionTypeRelocation:
		return "Relocation"
	case SectionTypeReserved:
		return "Reserved"
	case SectionTypeDynamicLinkerSymbolTable:
		return "DynamicLinkerSymbolTable"
	case SectionTypeConstructorArray:
		return "ConstructorArray"
	case SectionTypeDestructorArray:
		return "DestructorArray"
	case SectionTypePreConstructorArray:
		return "PreConstructorArray"
	case SectionTypeGroup:
		return "Group"
	case SectionTypeExtendedIndices:
		return "ExtendedIndices"
	default:
		return fmt.Sprintf("SectionTypeUnknown(%#x)", uint32(t))
	}
}

// sh_flags
type SectionFlags uint64

const (
	SectionFlagWrite           = SectionFlags(0x1)
	SectionFlagAlloc           = SectionFlags(0x2)
	SectionFlagExecInstr       = SectionFlags(0x4)
	SectionFlagMerge           = SectionFlags(0x10)
	SectionFlagStrings         = SectionFlags(0x20)
	SectionFlagInfoLink        = SectionFlags(0x40)
	SectionFlagLinkOrder       = SectionFlags(0x80)
	SectionFlagOSNonconforming = SectionFlags(0x100)
	SectionFlagGroup           = SectionFlags(0x200)
	SectionFlagTLS             = SectionFlags(0x400)
	SectionFlagMaskOS          = SectionFlags(0x0FF00000)
	SectionFlagMaskProc        = SectionFlags(0xF0000000)
)

func (f SectionFlags) String() string {
	result := []byte("---------")

	if f&SectionFlagWrite != 0 {
		result[0] = 'w'
	}
	if f&SectionFlagAlloc != 0 {
		result[1] = 'a'
	}
	if f&SectionFlagExecInstr != 0 {
		result[2] = 'x'
	}
	if f&SectionFlagMerge != 0 {
		result[3] = 'm'
	}
	if f&SectionFlagStrings != 0 {
		result[4] = 's'
	}
	if f&SectionFlagInfoLink != 0 {
		result[5] = 'i'
	}
	if f&SectionFlagLinkOrder != 0 {
		result[6] = 'l'
	}
	if f&SectionFlagGroup != 0 {
		result[7] = 'g'
	}
	if f&SectionFlagTLS != 0 {
		result[8] = 't'
	}

	return string(result)
}

// The bottom 4 bits of st_info.
type SymbolType byte

func symbolInfoToType(info byte) SymbolType {
	return SymbolType(info & 0xf)
}

const (
	SymbolTypeNone    = SymbolType(0)
	SymbolTypeObject  = SymbolType(1)
	SymbolTypeFunc    = SymbolType(2)
	SymbolTypeSection = SymbolType(3)
	SymbolTypeFile    = SymbolType(4)
	SymbolTypeCommon  = SymbolType(5)
	SymbolTypeTLS     = SymbolType(6)
)

func (t SymbolType) String() string {
	switch t {
	case SymbolTypeNone:
		return "NoType"
	case SymbolTypeObject:
		return "Object"
	case SymbolTypeFunc:
		return "Func"
	case SymbolTypeSection:
		return "Section"
	case SymbolTypeFile:
		return "File"
	case SymbolTypeCommon:
		return "Common"
	case SymbolTypeTLS:
		return "TLS"
	default:
		return fmt.Sprintf("SymbolTypeUnknown(%d)", byte(t))
	}
}

// The top 4 bits of st_info.
type SymbolBinding byte

func symbolInfoToBinding(info byte) SymbolBinding {
	return SymbolBinding(info >> 4)
}

const (
	SymbolBindingLocal  = SymbolBinding(0)
	SymbolBindingGlobal = SymbolBinding(1)
	SymbolBindingWeak   = SymbolBinding(2)
)

func (b SymbolBinding) String() string {
	switch b {
	case SymbolBindingLocal:
		return "Local"
	case SymbolBindingGlobal:
		return "Global"
	case SymbolBindingWeak:
		return "Weak"
	default:
		return fmt.Sprintf("SymbolBindingUnknown(%d)", byte(b))
	}
}

// Header is the fixed-size ELF header (e_ident plus the fields that follow
// it), normalized to field widths wide enough for both 32- and 64-bit
// classes.
type Header struct {
	Class      Class
	Data       DataEncoding
	OSABI      OSABI
	ABIVersion uint8

	Type    FileType
	Machine Machine

	Entry               uint64
	ProgramHeaderOffset uint64
	SectionHeaderOffset uint64

	Flags uint32

	HeaderSize             uint16
	ProgramHeaderEntrySize uint16
	ProgramHeaderCount     uint16
	SectionHeaderEntrySize uint16
	SectionHeaderCount     uint16
	SectionNameTableIndex  uint16
}

// ProgramHeaderEntry describes one run-time segment. Elf32_Phdr and
// Elf64_Phdr place the same logical fields at different offsets and widths;
// both normalize to this struct.
type ProgramHeaderEntry struct {
	Type  SegmentType
	Flags SegmentFlags

	FileOffset      uint64
	VirtualAddress  uint64
	PhysicalAddress uint64
	FileSize        uint64
	MemorySize      uint64
	Alignment       uint64
}

// SectionHeaderEntry describes one section, independent of its contents.
// Data is the owned sub-cursor over [Offset, Offset+Size) of the file,
// populated once the section table has been fully read; it is nil for
// SectionTypeNoBits sections, which occupy no file bytes.
type SectionHeaderEntry struct {
	NameOffset uint32
	Type       SectionType
	Flags      SectionFlags

	Address   uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Alignment uint64
	EntrySize uint64

	Data *cursor.ByteCursor
}

