// Command rvdump parses an ELF file and inspects its RISC-V (RV32/64I)
// executable sections, either as a one-shot dump or through an interactive
// REPL.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rvtools/rvelf/elf"
)

func usage() {
	fmt.Println("usage: rvdump dump <file>")
	fmt.Println("       rvdump run <file>")
}

func main() {
	args := os.Args[1:]
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}

	mode, path := args[0], args[1]

	content, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	file, err := elf.ParseBytes(content)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	sess := &session{file: file, cfg: cfg}

	switch mode {
	case "dump":
		runDump(sess)
	case "run":
		runREPL(sess)
	default:
		usage()
		os.Exit(1)
	}
}

// runDump reproduces the teacher's one-shot print-elf dump, extended with
// demangled symbol names and a disassembly pass over every executable
// section.
func runDump(sess *session) {
	printHeaders(sess, "")
	printSections(sess, "")
	printSymbols(sess, "")

	for _, section := range sess.file.Sections {
		if section.Header().Flags&elf.SectionFlagExecInstr == 0 {
			continue
		}

		content, err := section.RawContent()
		if err != nil {
			continue
		}

		fmt.Printf("Disassembly of %s:\n", section.Name())
		printDisassembly(section.Header().Address, content, 0)
	}
}

func runREPL(sess *session) {
	topCmds := initializeCommands(sess)

	rl, err := readline.New("rvdump > ")
	if err != nil {
		log.Fatal(err)
	}
	defer rl.Close()

	log.Println("rvdump REPL started; type 'help' for available commands")

	lastLine := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				break
			}
			log.Fatal(err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			line = lastLine
		}
		lastLine = line

		if line == "" {
			continue
		}

		err = topCmds.run(line)
		if errors.Is(err, errQuit) {
			break
		} else if err != nil {
			fmt.Println("error:", err)
		}
	}

	log.Println("rvdump REPL exiting")
}
