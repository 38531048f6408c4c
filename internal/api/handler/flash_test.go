package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFlashStore_RoundTrip(t *testing.T) {
	store := NewFlashStore("secret")

	rec := httptest.NewRecorder()
	store.Set(rec, Flash{Category: FlashWarning, Message: "No files part"})

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != flashCookieName {
		t.Fatalf("cookies = %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("flash cookie should be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	got, ok := store.Pop(httptest.NewRecorder(), req)
	if !ok {
		t.Fatal("Pop() found no flash")
	}
	if got.Category != FlashWarning || got.Message != "No files part" {
		t.Errorf("Pop() = %+v", got)
	}
}

func TestFlashStore_Pop(t *testing.T) {
	signed := httptest.NewRecorder()
	NewFlashStore("secret").Set(signed, Flash{Category: FlashSuccess, Message: "Uploaded 1 file(s)."})
	valid := signed.Result().Cookies()[0].Value

	tests := []struct {
		name   string
		secret string
		value  string
		want   bool
	}{
		{"valid", "secret", valid, true},
		{"other secret", "other", valid, false},
		{"tampered payload", "secret", "x" + valid, false},
		{"no signature", "secret", "eyJtZXNzYWdlIjoiaGkifQ", false},
		{"garbage", "secret", "...", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: flashCookieName, Value: tt.value})
			rec := httptest.NewRecorder()

			_, ok := NewFlashStore(tt.secret).Pop(rec, req)
			if ok != tt.want {
				t.Errorf("Pop() ok = %v, want %v", ok, tt.want)
			}

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == flashCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			if !cleared {
				t.Error("cookie should be cleared whether or not it verifies")
			}
		})
	}
}

func TestFlashStore_CookieNameIsBound(t *testing.T) {
	store := NewFlashStore("secret")

	// A value signed for another cookie name must not verify as a flash.
	other, err := store.codec.Encode("other", Flash{Category: FlashSuccess, Message: "hi"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: other})
	if _, ok := store.Pop(httptest.NewRecorder(), req); ok {
		t.Error("Pop() accepted a value signed for another cookie")
	}
}

func TestFlashStore_PopWithoutCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, ok := NewFlashStore("secret").Pop(rec, httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("Pop() ok = true without a cookie")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be written when none was sent")
	}
}
