package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/switchboard/internal/ingestion"
)

func TestIngestFailure(t *testing.T) {
	tests := []struct {
		name    string
		files   []ingestion.FileResult
		wantErr string
	}{
		{
			name: "all ingested",
			files: []ingestion.FileResult{
				{Path: "/kb/a.txt", Outcome: ingestion.OutcomeIngested, Chunks: 2},
				{Path: "/kb/b.txt", Outcome: ingestion.OutcomeUnchanged},
			},
		},
		{
			name:  "nothing to do",
			files: nil,
		},
		{
			name: "one failure",
			files: []ingestion.FileResult{
				{Path: "/kb/a.txt", Outcome: ingestion.OutcomeIngested, Chunks: 2},
				{Path: "/kb/broken.pdf", Outcome: ingestion.OutcomeFailed, Error: "parse pdf: malformed"},
			},
			wantErr: "1 of 2 files failed to ingest: /kb/broken.pdf: parse pdf: malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ingestFailure(&ingestion.Report{Files: tt.files})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
