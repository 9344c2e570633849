package ui

import (
	"fmt"
	"io"
	"os"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
	Bold   = "\033[1m"
)

// Out receives all console output. Quiet runs point it at io.Discard.
var Out io.Writer = os.Stdout

func Printf(color string, format string, a ...interface{}) {
	fmt.Fprintf(Out, color+format+Reset, a...)
}

func Println(color string, a ...interface{}) {
	fmt.Fprint(Out, color)
	fmt.Fprint(Out, a...)
	fmt.Fprintln(Out, Reset)
}

func Info(format string, a ...interface{}) {
	fmt.Fprintf(Out, Cyan+"[INFO] "+Reset+format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	fmt.Fprintf(Out, Green+"[+] "+Reset+format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	fmt.Fprintf(Out, Red+"[-] "+Reset+format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	fmt.Fprintf(Out, Yellow+"[!] "+Reset+format+"\n", a...)
}

func Section(title string) {
	fmt.Fprintf(Out, "\n"+Bold+Blue+"=== %s ==="+Reset+"\n", title)
}
