// Package main is a terminal client for the Inspectra API: ask one
// question from the shell, or hold a session in an interactive loop.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aditya01hpl/Inspectra/pkg/session"
)

func main() {
	server := flag.String("server", envOr("INSPECTRA_SERVER", "http://localhost:8080"), "Inspectra API base URL")
	topK := flag.Int("k", 0, "semantic neighbors to retrieve (0 = server default)")
	asJSON := flag.Bool("json", false, "print raw JSON responses")
	sessionID := flag.String("session", "", "session ID for follow-up questions")
	recordID := flag.String("record", "", "fetch one record by ID instead of asking")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Usage = printUsage
	flag.Parse()

	c := newClient(*server, *timeout)
	ctx := context.Background()

	if *recordID != "" {
		if err := showRecord(ctx, c, *recordID, *asJSON); err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() > 0 {
		question := strings.Join(flag.Args(), " ")
		res, err := c.ask(ctx, askRequest{Question: question, TopK: *topK, SessionID: *sessionID})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := writeAnswer(os.Stdout, res, *asJSON); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := repl(ctx, c, *topK, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: ask [flags] [question...]

Ask the Inspectra engine about vehicle inspection records. With no
question, starts an interactive session.

Examples:
  ask "which Model 3s had hail damage last week?"
  ask -k 10 -json "what damage shows up most often?"
  ask -record insp-000421

Flags:
`)
	flag.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// repl runs the interactive loop. Every turn shares one session so
// follow-up questions carry history; /new starts over.
func repl(ctx context.Context, c *client, topK int, asJSON bool) error {
	sid := session.NewID()
	fmt.Printf("Inspectra interactive session (/help for commands)\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("inspectra> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			sid = session.NewID()
			fmt.Println("Started a fresh session.")
			continue
		case line == "/help":
			fmt.Println("Commands: /show <record-id>, /new, /quit")
			continue
		case strings.HasPrefix(line, "/show"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/show"))
			if id == "" {
				fmt.Println("Usage: /show <record-id>")
				continue
			}
			if err := showRecord(ctx, c, id, asJSON); err != nil {
				fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			}
			continue
		case strings.HasPrefix(line, "/"):
			fmt.Printf("Unknown command %s (/help for commands)\n", line)
			continue
		}

		res, err := c.ask(ctx, askRequest{Question: line, TopK: topK, SessionID: sid})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			continue
		}
		if err := writeAnswer(os.Stdout, res, asJSON); err != nil {
			return err
		}
	}
}

func showRecord(ctx context.Context, c *client, id string, asJSON bool) error {
	rec, err := c.record(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(os.Stdout, rec)
	}
	fmt.Println(rec.Summary())
	return nil
}

// writeAnswer renders one answer for the terminal.
func writeAnswer(w io.Writer, res *askResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}

	fmt.Fprintln(w, res.Answer)

	if len(res.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range res.Citations {
			fmt.Fprintf(w, "  [%d] %-12s %-10s %.2f\n", i+1, c.RecordID, c.Provenance, c.Score)
		}
	}

	meta := fmt.Sprintf("\nplan=%s", res.Plan)
	if res.Model != "" {
		meta += " model=" + res.Model
	}
	meta += fmt.Sprintf(" took=%dms", res.Stats.TotalMS)
	if res.Stats.Cached {
		meta += " (cached)"
	}
	if res.Retried {
		meta += " (retried)"
	}
	if res.RefusalCode != "" {
		meta += " refusal=" + res.RefusalCode
	}
	fmt.Fprintln(w, meta)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
