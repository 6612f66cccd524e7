// ingest-cli walks a folder and uploads every supported file to a
// running assistant instance, then optionally polls until each
// document reaches a terminal status.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	pollWait  time.Duration
	noPoll    bool
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".txt":  {},
	".csv":  {},
	".html": {},
	".htm":  {},
	".docx": {},
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest-cli <folder>",
		Short: "Bulk-upload documents to the support assistant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestFolder(args[0])
		},
	}
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "assistant base URL")
	rootCmd.Flags().DurationVar(&pollWait, "poll-timeout", 2*time.Minute, "how long to wait for each document to become ready")
	rootCmd.Flags().BoolVar(&noPoll, "no-poll", false, "do not wait for readiness, just upload")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func ingestFolder(folder string) error {
	client := &http.Client{Timeout: 5 * time.Minute}

	var uploaded, skipped, failed int
	err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := supportedExtensions[ext]; !ok {
			skipped++
			return nil
		}

		documentID, err := uploadFile(client, path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL  %s: %v\n", path, err)
			return nil
		}
		uploaded++

		if noPoll {
			fmt.Printf("OK    %s (%s)\n", path, documentID)
			return nil
		}

		status, err := pollStatus(client, documentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN  %s (%s): %v\n", path, documentID, err)
			return nil
		}
		fmt.Printf("%-5s %s (%s)\n", strings.ToUpper(status), path, documentID)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("uploaded=%d skipped=%d failed=%d\n", uploaded, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d uploads failed", failed)
	}
	return nil
}

func uploadFile(client *http.Client, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/upload-document", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(payload))
	}

	var result struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.DocumentID, nil
}

func pollStatus(client *http.Client, documentID string) (string, error) {
	deadline := time.Now().Add(pollWait)
	for time.Now().Before(deadline) {
		resp, err := client.Get(fmt.Sprintf("%s/documents/%s/status", serverURL, documentID))
		if err != nil {
			return "", err
		}
		var result struct {
			Status       string  `json:"status"`
			ErrorMessage *string `json:"error_message"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&result)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return "", decodeErr
		}

		switch result.Status {
		case "ready":
			return result.Status, nil
		case "error":
			msg := "unknown error"
			if result.ErrorMessage != nil {
				msg = *result.ErrorMessage
			}
			return result.Status, fmt.Errorf("processing failed: %s", msg)
		}
		time.Sleep(2 * time.Second)
	}
	return "", fmt.Errorf("document not ready after %s", pollWait)
}
