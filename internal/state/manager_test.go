package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	manager, err := NewManager(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if manager.db == nil {
		t.Error("Database connection is nil")
	}

	dbPath := filepath.Join(tmpDir, DBFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewManager_EmptyDir(t *testing.T) {
	_, err := NewManager("")
	if err == nil {
		t.Error("Expected error for empty directory, got nil")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	record := RunRecord{
		Operation:        OpUpload,
		StartTime:        time.Now().Add(-10 * time.Minute),
		EndTime:          time.Now(),
		Status:           StatusSuccess,
		FilesTransferred: 4,
		BytesTransferred: 2048,
	}

	if err := manager.SaveRun(record); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	history, err := manager.GetHistory(OpUpload, 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(history))
	}

	got := history[0]
	if got.Operation != record.Operation {
		t.Errorf("Expected operation %s, got %s", record.Operation, got.Operation)
	}
	if got.Status != record.Status {
		t.Errorf("Expected status %s, got %s", record.Status, got.Status)
	}
	if got.FilesTransferred != record.FilesTransferred {
		t.Errorf("Expected %d files, got %d", record.FilesTransferred, got.FilesTransferred)
	}
	if got.BytesTransferred != record.BytesTransferred {
		t.Errorf("Expected %d bytes, got %d", record.BytesTransferred, got.BytesTransferred)
	}
}

func TestGetHistory_FiltersByOperation(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	records := []RunRecord{
		{Operation: OpUpdate, StartTime: time.Now().Add(-30 * time.Minute), EndTime: time.Now().Add(-29 * time.Minute), Status: StatusSuccess},
		{Operation: OpUpload, StartTime: time.Now().Add(-20 * time.Minute), EndTime: time.Now().Add(-19 * time.Minute), Status: StatusSuccess, FilesTransferred: 3},
		{Operation: OpDownload, StartTime: time.Now().Add(-10 * time.Minute), EndTime: time.Now().Add(-9 * time.Minute), Status: StatusFailed, Error: "listing denied"},
	}
	for _, r := range records {
		if err := manager.SaveRun(r); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	uploads, err := manager.GetHistory(OpUpload, 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(uploads) != 1 || uploads[0].FilesTransferred != 3 {
		t.Errorf("Expected the single upload record, got %+v", uploads)
	}

	all, err := manager.GetAllHistory(10)
	if err != nil {
		t.Fatalf("Failed to get all history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	// Most recent first
	if all[0].Operation != OpDownload {
		t.Errorf("Expected most recent record to be the download, got %s", all[0].Operation)
	}
}

func TestGetLastSuccess(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	records := []RunRecord{
		{Operation: OpUpload, StartTime: time.Now().Add(-30 * time.Minute), EndTime: time.Now().Add(-29 * time.Minute), Status: StatusSuccess, FilesTransferred: 5},
		{Operation: OpUpload, StartTime: time.Now().Add(-20 * time.Minute), EndTime: time.Now().Add(-19 * time.Minute), Status: StatusFailed, Error: "network error"},
		{Operation: OpUpload, StartTime: time.Now().Add(-10 * time.Minute), EndTime: time.Now().Add(-9 * time.Minute), Status: StatusSuccess, FilesTransferred: 10},
	}
	for _, r := range records {
		if err := manager.SaveRun(r); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	last, err := manager.GetLastSuccess(OpUpload)
	if err != nil {
		t.Fatalf("Failed to get last success: %v", err)
	}
	if last == nil {
		t.Fatal("Expected last success, got nil")
	}
	if last.FilesTransferred != 10 {
		t.Errorf("Expected last success with 10 files, got %d", last.FilesTransferred)
	}
}

func TestGetLastSuccess_NoSuccess(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	record := RunRecord{
		Operation: OpDownload,
		StartTime: time.Now().Add(-10 * time.Minute),
		EndTime:   time.Now(),
		Status:    StatusFailed,
		Error:     "test error",
	}
	if err := manager.SaveRun(record); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	last, err := manager.GetLastSuccess(OpDownload)
	if err != nil {
		t.Fatalf("Failed to get last success: %v", err)
	}
	if last != nil {
		t.Error("Expected nil for last success, got a record")
	}
}

func TestGetHistory_Limit(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	for i := 0; i < 5; i++ {
		record := RunRecord{
			Operation:        OpUpdate,
			StartTime:        time.Now().Add(time.Duration(-i*10) * time.Minute),
			EndTime:          time.Now().Add(time.Duration(-i*10+1) * time.Minute),
			Status:           StatusSuccess,
			FilesTransferred: i,
		}
		if err := manager.SaveRun(record); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	history, err := manager.GetHistory(OpUpdate, 3)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}
	if history[0].FilesTransferred != 0 {
		t.Errorf("Expected most recent record first, got %d files", history[0].FilesTransferred)
	}
}

func TestSaveRun_InvalidStatus(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	record := RunRecord{
		Operation: OpUpdate,
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Status:    "interrupted",
	}

	if err := manager.SaveRun(record); err == nil {
		t.Error("Expected error for invalid status, got nil")
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if _, err := manager.GetHistory(OpUpdate, 0); err == nil {
		t.Error("Expected error for limit=0, got nil")
	}
	if _, err := manager.GetAllHistory(-1); err == nil {
		t.Error("Expected error for limit=-1, got nil")
	}
}
