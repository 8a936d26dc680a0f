// Command extract_names pulls probable student names out of text copied from
// a PDF or spreadsheet roster and optionally imports them into a class.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/edunotas/edunotas-api/internal/roster"
)

func main() {
	inputFlag := flag.String("in", "-", "Text file to scan, - for stdin")
	serverFlag := flag.String("server", "http://localhost:8080/api/v1", "API base URL used with -class")
	classFlag := flag.String("class", "", "Import the names into this class id instead of printing them")
	flag.Parse()

	raw, err := readInput(*inputFlag)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	names := roster.ExtractCandidates(string(raw))
	if len(names) == 0 {
		log.Fatal("no names detected")
	}

	if *classFlag == "" {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if err := importNames(*serverFlag, *classFlag, names); err != nil {
		log.Fatalf("import: %v", err)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func importNames(server, classID string, names []string) error {
	body, err := json.Marshal(map[string]string{"text": strings.Join(names, "\n")})
	if err != nil {
		return err
	}
	url := strings.TrimRight(server, "/") + "/classes/" + classID + "/import"
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data struct {
			Added   int `json:"added"`
			Skipped int `json:"skipped"`
			Total   int `json:"total"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %s", resp.Status, envelope.Error.Message)
	}
	log.Printf("added %d, skipped %d, class now has %d students", envelope.Data.Added, envelope.Data.Skipped, envelope.Data.Total)
	return nil
}
