package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katadb/katadb/internal/dispatcher"
	"github.com/katadb/katadb/internal/katalog"
	"github.com/katadb/katadb/internal/storage"
)

var cli struct {
	DataDir   string `help:"Directory holding table subdirectories." default:"data" name:"data-dir"`
	B         int    `help:"B-tree minimum degree." default:"10"`
	LogLevel  string `help:"debug, info, warn, or error." default:"info" name:"log-level"`
	LogPretty bool   `help:"Console-formatted logging instead of JSON." name:"log-pretty"`
	HTTPAddr  string `help:"Address to serve a JSON query endpoint on; empty disables it." name:"http-addr"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("katadb"),
		kong.Description("A minimal disk-backed relational engine."),
	)

	log := katalog.Init(katalog.Config{Level: cli.LogLevel, Pretty: cli.LogPretty})

	if err := os.MkdirAll(cli.DataDir, 0755); err != nil {
		fmt.Printf("Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	d, err := dispatcher.New(cli.DataDir, cli.B, log)
	if err != nil {
		fmt.Printf("Error initializing dispatcher: %v\n", err)
		os.Exit(1)
	}

	if cli.HTTPAddr != "" {
		go serveHTTP(d, cli.HTTPAddr)
	}

	fmt.Println("katadb")
	fmt.Println("Type .exit to quit, .show tables to list tables")

	isInteractive := true
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		isInteractive = false
	}

	if isInteractive {
		runInteractive(d)
	} else {
		runPiped(d)
	}
}

func serveHTTP(d *dispatcher.Dispatcher, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(d, w, r)
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("HTTP server exited: %v\n", err)
	}
}

// httpRequest is the JSON body expected by the POST / query endpoint.
type httpRequest struct {
	SQL string `json:"sql"`
}

type httpResponse struct {
	Columns  []string   `json:"columns,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	Affected int        `json:"affected,omitempty"`
	Message  string     `json:"message,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// handleQuery serves one statement per request, mapping error kinds to HTTP
// status per spec §7: schema/parse problems are client errors, I/O and
// corruption are server errors.
func handleQuery(d *dispatcher.Dispatcher, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req httpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, httpResponse{Error: err.Error()})
		return
	}

	result, err := d.Execute(req.SQL)
	if err != nil {
		writeJSON(w, statusForError(err), httpResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, httpResponse{
		Columns:  result.Columns,
		Rows:     result.Rows,
		Affected: result.Affected,
		Message:  result.Message,
	})
}

func statusForError(err error) int {
	switch err.(type) {
	case *storage.SchemaError, *storage.UnsupportedError, *storage.NotFoundError:
		return http.StatusBadRequest
	case *storage.IOError, *storage.CorruptionError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body httpResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func runInteractive(d *dispatcher.Dispatcher) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		return
	}
	defer rl.Close()

	multilineBuffer := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				multilineBuffer = ""
				continue
			} else if err == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Meta-commands (spec.md §6: lines beginning with ".") dispatch
		// immediately — they never wait on a ";" terminator.
		if strings.HasPrefix(trimmed, ".") {
			if strings.EqualFold(trimmed, ".exit") {
				fmt.Println("Goodbye!")
				break
			}
			processMetaCommand(d, trimmed)
			multilineBuffer = ""
			rl.SetPrompt("> ")
			continue
		}

		if multilineBuffer != "" {
			multilineBuffer += "\n"
		}
		multilineBuffer += line

		if !strings.HasSuffix(trimmed, ";") {
			rl.SetPrompt("... ")
			continue
		}
		rl.SetPrompt("> ")

		processCommand(d, multilineBuffer)
		multilineBuffer = ""
	}
}

func runPiped(d *dispatcher.Dispatcher) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Printf("Error reading stdin: %v\n", err)
		return
	}
	buffer := ""
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ".") {
			if strings.EqualFold(trimmed, ".exit") {
				return
			}
			processMetaCommand(d, trimmed)
			continue
		}
		if buffer != "" {
			buffer += "\n"
		}
		buffer += line
		if strings.HasSuffix(trimmed, ";") {
			processCommand(d, buffer)
			buffer = ""
		}
	}
	if strings.TrimSpace(buffer) != "" {
		processCommand(d, buffer)
	}
}

// processMetaCommand handles the dot-prefixed meta-commands from spec.md §6
// and SPEC_FULL.md §12 (.show tables, .show table <name>); .exit is handled
// by runInteractive and runPiped before they call it. Unlike SQL statements
// these dispatch on a single line, with no ";" terminator.
func processMetaCommand(d *dispatcher.Dispatcher, input string) {
	lower := strings.ToLower(strings.TrimSpace(input))

	if lower == ".show tables" {
		tables, err := d.ListTables()
		if err != nil {
			fmt.Printf("Error listing tables: %v\n", err)
			return
		}
		sort.Strings(tables)
		fmt.Println("TABLE_NAME")
		fmt.Println("----------")
		for _, t := range tables {
			fmt.Println(t)
		}
		return
	}

	if strings.HasPrefix(lower, ".show table ") {
		name := strings.TrimSpace(lower[len(".show table "):])
		schema, err := d.DescribeTable(name)
		if err != nil {
			fmt.Printf("Error describing table %q: %v\n", name, err)
			return
		}
		fmt.Printf("Table: %s\n", schema.TableName)
		fmt.Println("COLUMN_NAME  | TYPE    | NULLABLE | PRIMARY | UNIQUE | AUTOINCREMENT")
		fmt.Println("-------------+---------+----------+---------+--------+--------------")
		for _, col := range schema.Columns {
			fmt.Printf("%-12s | %-7s | %-8v | %-7v | %-6v | %v\n",
				col.Name, col.Type, col.Nullable, col.PrimaryKey, col.Unique, col.AutoIncrement)
		}
		return
	}

	fmt.Printf("Unknown meta-command: %s\n", strings.TrimSpace(input))
}

// processCommand parses and executes one ";"-terminated SQL statement.
func processCommand(d *dispatcher.Dispatcher, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	result, err := d.Execute(input)
	if err != nil {
		fmt.Printf("Error executing statement: %v\n", err)
		return
	}
	printResult(result)
}

func printResult(result *dispatcher.Result) {
	if result == nil {
		return
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	if len(result.Columns) == 0 && len(result.Rows) == 0 {
		return
	}
	printFormattedResults(result.Columns, result.Rows)
}

func printFormattedResults(columns []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("Empty result set")
		return
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(widths) && len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	for i, c := range columns {
		if i > 0 {
			fmt.Print(" | ")
		}
		fmt.Printf("%-*s", widths[i], c)
	}
	fmt.Println()
	for i := range columns {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()

	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				fmt.Print(" | ")
			}
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			fmt.Printf("%-*s", w, v)
		}
		fmt.Println()
	}
}

func historyFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".katadb_history"
	}
	return filepath.Join(homeDir, ".katadb_history")
}
