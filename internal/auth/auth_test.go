package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// cheap keeps argon2 fast in tests.
var cheap = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHasher_Hash(t *testing.T) {
	h := NewHasher(cheap)
	tests := []struct {
		name     string
		password string
	}{
		{"valid password", "password123"},
		{"empty password", ""},
		{"long password", strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
				t.Errorf("Hash() = %q, unexpected encoding", hash)
			}
		})
	}
}

func TestHasher_DifferentHashes(t *testing.T) {
	h := NewHasher(cheap)
	hash1, _ := h.Hash("testpassword")
	hash2, _ := h.Hash("testpassword")

	if hash1 == hash2 {
		t.Error("Hash() should produce different hashes for same password")
	}
}

func TestHasher_Verify(t *testing.T) {
	h := NewHasher(cheap)
	password := "testpassword123"
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	legacy, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
		wantErr  bool
	}{
		{"correct password", hash, password, true, false},
		{"wrong password", hash, "wrongpassword", false, false},
		{"empty password", hash, "", false, false},
		{"invalid hash", "invalidhash", password, false, true},
		{"truncated hash", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA", password, false, true},
		{"legacy bcrypt correct", string(legacy), password, true, false},
		{"legacy bcrypt wrong", string(legacy), "nope", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Verify(tt.hash, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	h := NewHasher(cheap)
	current, _ := h.Hash("password1")
	stronger, _ := NewHasher(Argon2Params{Memory: 2048, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}).Hash("password1")
	legacy, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)

	if h.NeedsRehash(current) {
		t.Error("NeedsRehash() = true for current params")
	}
	if !h.NeedsRehash(stronger) {
		t.Error("NeedsRehash() = false for different params")
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Error("NeedsRehash() = false for bcrypt hash")
	}
}

func TestNewToken_Unique(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, _ := NewToken()
	if a == b {
		t.Error("NewToken() should generate unique tokens")
	}
	if a.Version() != 4 {
		t.Errorf("NewToken() version = %d, want 4", a.Version())
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"canonical", "6ba7b810-9dad-41d1-80b4-00c04fd430c8", "6ba7b810-9dad-41d1-80b4-00c04fd430c8", false},
		{"upper case", "6BA7B810-9DAD-41D1-80B4-00C04FD430C8", "6ba7b810-9dad-41d1-80b4-00c04fd430c8", false},
		{"garbage", "not-a-token", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"bearer", "Bearer abc", "abc", true},
		{"lower case scheme", "bearer abc", "abc", true},
		{"padded", "Bearer   abc  ", "abc", true},
		{"basic", "Basic abc", "", false},
		{"empty", "", "", false},
		{"scheme only", "Bearer ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBearer(tt.header)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseBearer(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseTicket(t *testing.T) {
	secret := "test-secret-key"
	ticket, err := IssueTicket(secret, 42, 7, 3, time.Minute)
	if err != nil {
		t.Fatalf("IssueTicket() error = %v", err)
	}
	expired, err := IssueTicket(secret, 42, 7, 3, -time.Minute)
	if err != nil {
		t.Fatalf("IssueTicket() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{"valid ticket", ticket, secret, false},
		{"wrong secret", ticket, "wrong-secret", true},
		{"expired", expired, secret, true},
		{"invalid token", "invalid.token.here", secret, true},
		{"empty token", "", secret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseTicket(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTicket() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (claims.UserID != 42 || claims.RoomID != 7 || claims.SessionID != 3) {
				t.Errorf("ParseTicket() claims = %+v", claims)
			}
		})
	}
}

func TestSessionContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUserID(c) != 0 || GetSessionID(c) != 0 || GetToken(c) != "" {
		t.Fatal("empty context should yield zero values")
	}
	SetSession(c, 5, 9, "tok")
	if GetUserID(c) != 5 || GetSessionID(c) != 9 || GetToken(c) != "tok" {
		t.Errorf("got user=%d session=%d token=%q", GetUserID(c), GetSessionID(c), GetToken(c))
	}
}
