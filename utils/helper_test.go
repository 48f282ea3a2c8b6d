package utils

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{" 2024-03-05 ", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05T17:45:00Z", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q): expected %s, got %s", tc.in, tc.want, got)
		}
	}
	for _, bad := range []string{"", "05/03/2024", "yesterday"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q): expected an error", bad)
		}
	}
}

func TestDateOnlyDropsTimeOfDay(t *testing.T) {
	in := time.Date(2024, 1, 31, 23, 59, 59, 999, time.UTC)
	if got := DateOnly(in); !got.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %s", got)
	}
}

func TestUniqueSliceKeepsFirstOccurrence(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestValidatePhoneNumberRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"12", "not a number"} {
		if err := ValidatePhoneNumber(bad, CountryCode); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

type sampleInput struct {
	Name     string `json:"name" validate:"required,max=10"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestValidateStructReportsJsonFieldNames(t *testing.T) {
	err := ValidateStruct(sampleInput{Name: "", Quantity: 0})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.CodeValidationError {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if appErr.Details["name"] != "required" || appErr.Details["quantity"] != "gt" {
		t.Fatalf("unexpected details %v", appErr.Details)
	}

	if err := ValidateStruct(sampleInput{Name: "rice", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCompanyLockWithoutRedisIsNoop(t *testing.T) {
	release, err := CompanyLock(context.Background(), 1, "posting", "utils", "TestCompanyLockWithoutRedisIsNoop")
	if err != nil {
		t.Fatalf("expected no error without redis, got %v", err)
	}
	release()
}
