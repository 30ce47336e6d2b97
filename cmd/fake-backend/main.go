// ABOUTME: Minimal fake tool backend for E2E testing — serves the invocation protocol over HTTP.
// ABOUTME: Usage: fake-backend [-addr localhost:9001]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/oakmail/steward/internal/rip"
)

func main() {
	addr := flag.String("addr", "localhost:9001", "listen address")
	flag.Parse()

	http.HandleFunc("/rpc", handleRPC)
	fmt.Printf("fake-backend listening on %s\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// catalog is the fixed operation set the fake backend advertises.
var catalog = []rip.OperationInfo{
	{
		Name:        "classify_email",
		Description: "Classify a mail message into a support category",
		InputSchema: rip.InputSchema{
			Type: "object",
			Properties: map[string]rip.PropertySchema{
				"message_id": {Type: "string", Description: "Id of the mail message to classify"},
			},
			Required: []string{"message_id"},
		},
	},
	{
		Name:        "create_folder",
		Description: "Create a mail folder",
		InputSchema: rip.InputSchema{
			Type: "object",
			Properties: map[string]rip.PropertySchema{
				"name": {Type: "string", Description: "Folder display name"},
			},
			Required: []string{"name"},
		},
	},
}

func handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rip.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, rip.CodeParseError, "invalid JSON")
		return
	}

	switch req.Method {
	case rip.MethodListOperations:
		writeResult(w, rip.ListOperationsResult{Operations: catalog})
	case rip.MethodCallOperation:
		handleCall(w, req)
	default:
		writeRPCError(w, rip.CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func handleCall(w http.ResponseWriter, req rip.Request) {
	var params rip.CallOperationParams
	if err := mapstructure.Decode(req.Params, &params); err != nil {
		writeRPCError(w, rip.CodeInvalidParams, "malformed params")
		return
	}

	switch params.Name {
	case "classify_email":
		id, _ := params.Arguments["message_id"].(string)
		if id == "" {
			writeRPCError(w, rip.CodeInvalidParams, "message_id is required")
			return
		}
		// Deterministic classification keyed on the id, handy for tests.
		category := "support"
		if strings.Contains(id, "billing") {
			category = "billing"
		}
		writeResult(w, rip.CallOperationResult{
			Content: []rip.ContentItem{{Type: "text", Text: fmt.Sprintf("message %s classified as %s", id, category)}},
		})
	case "create_folder":
		name, _ := params.Arguments["name"].(string)
		if name == "" {
			writeRPCError(w, rip.CodeInvalidParams, "name is required")
			return
		}
		writeResult(w, rip.CallOperationResult{
			Content: []rip.ContentItem{{Type: "text", Text: fmt.Sprintf("folder %q created", name)}},
		})
	default:
		writeRPCError(w, rip.CodeMethodNotFound, fmt.Sprintf("unknown operation %q", params.Name))
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func writeRPCError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rip.Response{
		Error: &rip.ErrorObject{Code: code, Message: message},
	})
}
