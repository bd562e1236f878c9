package db

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolationPgx(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "practices_twilio_number_key"}

	if !IsUniqueViolation(err, "") {
		t.Fatalf("23505 must be a unique violation")
	}
	if !IsUniqueViolation(err, "practices_twilio_number_key") {
		t.Fatalf("constraint name must match")
	}
	if IsUniqueViolation(err, "practices_user_id_key") {
		t.Fatalf("different constraint must not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
}

func TestIsUniqueViolationPq(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "practices_stripe_customer_id_key"}

	if !IsUniqueViolation(err, "practices_stripe_customer_id_key") {
		t.Fatalf("pq unique violation must be recognized")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Fatalf("different constraint must not match")
	}
}

func TestIsUniqueViolationWrappedAndFallback(t *testing.T) {
	wrapped := fmt.Errorf("create practice: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped, "") {
		t.Fatalf("wrapped driver error must be unwrapped")
	}

	textual := stdErrors.New(`ERROR: duplicate key value violates unique constraint "practices_user_id_key"`)
	if !IsUniqueViolation(textual, "practices_user_id_key") {
		t.Fatalf("textual driver error must be recognized")
	}
	if IsUniqueViolation(stdErrors.New("connection refused"), "") {
		t.Fatalf("unrelated error must not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error must not match")
	}
}
