package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rvtools/rvelf/elf"
	"github.com/rvtools/rvelf/riscv"
)

func splitArg(args string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)

	first := parts[0]
	remaining := ""
	if len(parts) > 1 {
		remaining = parts[1]
	}

	return first, remaining
}

type command interface {
	run(string) error
}

type namedCommand struct {
	name        string
	description string
	command
}

type subCommands []namedCommand

func (cmds subCommands) run(args string) error {
	name, remaining := splitArg(args)

	if name == "" || strings.HasPrefix("help", name) {
		cmds.printAvailableCommands()
		return nil
	}

	for _, cmd := range cmds {
		if strings.HasPrefix(cmd.name, name) {
			return cmd.run(remaining)
		}
	}

	fmt.Println("invalid command:", args)
	return nil
}

func (cmds subCommands) printAvailableCommands() {
	fmt.Println("Available commands:")
	for _, cmd := range cmds {
		fmt.Println("  " + cmd.name + cmd.description)
	}
}

type cmdFunc func(*session, string) error

type funcCmd struct {
	session *session
	cmdFunc
}

func newFuncCmd(sess *session, f cmdFunc) funcCmd {
	return funcCmd{session: sess, cmdFunc: f}
}

func (cmd funcCmd) run(args string) error {
	return cmd.cmdFunc(cmd.session, args)
}

// session bundles the parsed file and display preferences shared by every
// REPL command.
type session struct {
	file *elf.File
	cfg  config
}

func initializeCommands(sess *session) command {
	return subCommands{
		{
			name:        "headers",
			description: " - print the ELF header and program headers",
			command:     newFuncCmd(sess, printHeaders),
		},
		{
			name:        "sections",
			description: " - list section headers",
			command:     newFuncCmd(sess, printSections),
		},
		{
			name: "symbols",
			description: " [name] - list symbols, or look up one by " +
				"name",
			command: newFuncCmd(sess, printSymbols),
		},
		{
			name: "disasm",
			description: " <section> [count] - disassemble <count> " +
				"(default from config) instructions from the named section",
			command: newFuncCmd(sess, disassembleSection),
		},
		{
			name:        "quit",
			description: " - exit",
			command:     newFuncCmd(sess, quit),
		},
	}
}

var errQuit = fmt.Errorf("quit")

func quit(*session, string) error {
	return errQuit
}

func printHeaders(sess *session, args string) error {
	fmt.Printf("%+v\n", sess.file.Header)
	fmt.Println("Program headers:", len(sess.file.ProgramHeaders))
	for idx, header := range sess.file.ProgramHeaders {
		fmt.Printf("  [%d] %+v\n", idx, header)
	}
	return nil
}

func printSections(sess *session, args string) error {
	fmt.Println("Sections:", len(sess.file.Sections))
	for idx, section := range sess.file.Sections {
		fmt.Printf("  [%d] %s: %+v\n", idx, section.Name(), section.Header())
	}
	return nil
}

func printSymbols(sess *session, args string) error {
	name := strings.TrimSpace(args)

	symtab, ok := sess.file.GetSymbolTable()
	if !ok {
		fmt.Println("no symbol table present")
		return nil
	}

	symbols := symtab.Symbols
	if name != "" {
		matches := symtab.SymbolsByName(name)
		if len(matches) == 0 {
			fmt.Println("no symbol named", name)
			return nil
		}
		symbols = matches
	}

	for _, sym := range symbols {
		display := sym.Name
		if sess.cfg.Demangle {
			display = sym.PrettyName()
		}
		fmt.Printf(
			"%x %d %s %s %s\n",
			sym.Value, sym.Size, sym.Type(), sym.Binding(), display)
	}
	return nil
}

func disassembleSection(sess *session, args string) error {
	name, rest := splitArg(args)
	if name == "" {
		fmt.Println("usage: disasm <section> [count]")
		return nil
	}

	count := sess.cfg.DisasmLength
	rest = strings.TrimSpace(rest)
	if rest != "" {
		parsed, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", rest, err)
		}
		count = parsed
	}

	target, ok := sess.file.GetSection(name)
	if !ok {
		fmt.Println("no section named", name)
		return nil
	}

	content, err := target.RawContent()
	if err != nil {
		return err
	}

	printDisassembly(target.Header().Address, content, count)
	return nil
}

// printDisassembly decodes up to count instructions (0 means unbounded)
// starting at baseAddress and prints each as "<address>: <pseudocode>".
func printDisassembly(baseAddress uint64, content []byte, count int) {
	usable := len(content) - len(content)%4
	instructions, err := riscv.Sequence(content[:usable])
	if err != nil {
		fmt.Println("disassembly error:", err)
		return
	}

	for idx, instr := range instructions {
		if count > 0 && idx >= count {
			break
		}
		address := baseAddress + uint64(idx*4)
		fmt.Printf("  0x%x: %s\n", address, riscv.Print(instr))
	}
}
