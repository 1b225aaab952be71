package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"derivbot/internal/models"
)

// ============================================================
// NotificationRepository Tests
// ============================================================

var notificationColumns = []string{
	"id", "timestamp", "type", "severity", "account_id", "message", "meta",
}

func TestNewNotificationRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)
	if repo == nil {
		t.Fatal("NewNotificationRepository returned nil")
	}
}

func TestNotificationRepositoryCreate(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name         string
		notification *models.Notification
		mockSetup    func(mock sqlmock.Sqlmock)
		expectError  bool
	}{
		{
			name: "success with meta",
			notification: &models.Notification{
				Timestamp: now,
				Type:      models.NotificationTypeClose,
				Severity:  models.SeverityInfo,
				AccountID: "CR123",
				Message:   "Position closed: WIN +2.50",
				Meta:      map[string]interface{}{"contract_id": "987654"},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(now, "CLOSE", "info", "CR123", "Position closed: WIN +2.50", []byte(`{"contract_id":"987654"}`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: false,
		},
		{
			name: "success without meta",
			notification: &models.Notification{
				Timestamp: now,
				Type:      models.NotificationTypeWatchdog,
				Severity:  models.SeverityWarn,
				AccountID: "CR123",
				Message:   "Watchdog force-released stuck lock",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(now, "WATCHDOG", "warn", "CR123", "Watchdog force-released stuck lock", []byte(nil)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
			},
			expectError: false,
		},
		{
			name: "database error",
			notification: &models.Notification{
				Timestamp: now,
				Type:      models.NotificationTypeError,
				Severity:  models.SeverityError,
				AccountID: "CR123",
				Message:   "broker api error",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(now, "ERROR", "error", "CR123", "broker api error", []byte(nil)).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewNotificationRepository(db)
			err = repo.Create(tt.notification)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.notification.ID == 0 {
					t.Error("expected ID to be set")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestNotificationRepositoryGetRecent(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(notificationColumns).
		AddRow(2, now, "CLOSE", "info", "CR123", "Position closed", []byte(`{"contract_id":"42"}`)).
		AddRow(1, now.Add(-time.Minute), "OPEN", "info", "CR123", "Position opened", []byte(nil))

	mock.ExpectQuery(`SELECT .+ FROM notifications ORDER BY timestamp DESC LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewNotificationRepository(db)
	notifications, err := repo.GetRecent(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
	if notifications[0].Meta["contract_id"] != "42" {
		t.Errorf("meta not restored: %+v", notifications[0].Meta)
	}
	if notifications[1].Meta != nil {
		t.Errorf("expected nil meta, got %+v", notifications[1].Meta)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryGetByTypes(t *testing.T) {
	now := time.Now().UTC()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(notificationColumns).
		AddRow(3, now, "HALT", "error", "CR123", "Ledger halted: duplicate contract", []byte(nil))

	mock.ExpectQuery(`SELECT .+ FROM notifications WHERE type = ANY\(\$1\)`).
		WithArgs("{HALT,WATCHDOG}", 10).
		WillReturnRows(rows)

	repo := NewNotificationRepository(db)
	notifications, err := repo.GetByTypes([]string{"HALT", "WATCHDOG"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Type != "HALT" {
		t.Errorf("type = %q, expected HALT", notifications[0].Type)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryDeleteOlderThan(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -30)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	repo := NewNotificationRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 7 {
		t.Errorf("deleted = %d, expected 7", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTypesToArray(t *testing.T) {
	tests := []struct {
		name     string
		types    []string
		expected string
	}{
		{"empty", nil, "{}"},
		{"single", []string{"HALT"}, "{HALT}"},
		{"multiple", []string{"OPEN", "CLOSE", "CANCEL"}, "{OPEN,CLOSE,CANCEL}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := typesToArray(tt.types); got != tt.expected {
				t.Errorf("typesToArray(%v) = %q, expected %q", tt.types, got, tt.expected)
			}
		})
	}
}
