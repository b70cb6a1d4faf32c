package utils

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

var (
	Info    = color.New(color.FgCyan).PrintfFunc()
	Success = color.New(color.FgGreen).PrintfFunc()
	Warning = color.New(color.FgYellow).PrintfFunc()
	Error   = color.New(color.FgRed).PrintfFunc()
	Debug   = color.New(color.FgHiBlack).PrintfFunc()

	// Bold helper
	Bold = color.New(color.Bold).SprintFunc()

	logMu   sync.Mutex
	logFile *os.File

	debugEnabled atomic.Bool
	quiet        atomic.Bool
)

const banner = "docextract :: cascading document text extraction"

// PrintBanner writes the startup banner to the console.
func PrintBanner() {
	if quiet.Load() {
		return
	}
	color.New(color.FgCyan, color.Bold).Println(banner)
}

// SetDebug toggles debug output. DEBUG=true in the environment also enables it.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// SetQuiet suppresses console output. The log file, if any, still receives every line.
func SetQuiet(on bool) {
	quiet.Store(on)
}

func debugOn() bool {
	return debugEnabled.Load() || os.Getenv("DEBUG") == "true"
}

func InitLogger(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logMu.Lock()
	logFile = f
	logMu.Unlock()
	return nil
}

func CloseLogger() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func logToFile(level string, msg string) {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		ts := time.Now().Format("2006/01/02 15:04:05")
		fmt.Fprintf(logFile, "%s [%s] %s\n", ts, level, strings.TrimSpace(msg))
	}
}

func console(print func(string, ...interface{}), line string) {
	if quiet.Load() {
		return
	}
	print("%s\n", line)
}

// LogExtracted reports a finished document, indented under the file that produced it.
func LogExtracted(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	logToFile("EXTRACT", msg)
	if !quiet.Load() {
		color.New(color.FgGreen).Printf("    [+] %s\n", msg)
	}
}

func LogInfo(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	logToFile("INFO", msg)
	console(Info, "[INFO] "+msg)
}

func LogSuccess(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	logToFile("SUCCESS", msg)
	console(Success, "[+] "+msg)
}

func LogWarning(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	logToFile("WARNING", msg)
	console(Warning, "[!] "+msg)
}

func LogError(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	logToFile("ERROR", msg)
	console(Error, "[-] "+msg)
}

// LogDebug is dropped entirely unless debug output is on.
func LogDebug(format string, a ...interface{}) {
	if !debugOn() {
		return
	}
	msg := fmt.Sprintf(format, a...)
	logToFile("DEBUG", msg)
	console(Debug, "[DEBUG] "+msg)
}
