package llm

import "testing"

func TestErrorFromStatusCode(t *testing.T) {
	cases := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*llm.InvalidRequestError", false},
		{401, "*llm.AuthenticationError", false},
		{403, "*llm.AccessDeniedError", false},
		{404, "*llm.NotFoundError", false},
		{408, "*llm.RequestTimeoutError", true},
		{413, "*llm.ContextLengthError", false},
		{422, "*llm.InvalidRequestError", false},
		{429, "*llm.RateLimitError", true},
		{500, "*llm.ServerError", true},
		{503, "*llm.ServerError", true},
		{599, "*llm.ProviderError", true},
	}

	for _, tc := range cases {
		err := ErrorFromStatusCode(tc.status, "boom", "anthropic", nil)
		if err == nil {
			t.Fatalf("status %d: nil error", tc.status)
		}
		if got := typeName(err); got != tc.wantType {
			t.Errorf("status %d: type = %s, want %s", tc.status, got, tc.wantType)
		}
		if got := IsRetryable(err); got != tc.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tc.status, got, tc.retryable)
		}
	}
}

func typeName(err error) string {
	switch err.(type) {
	case *InvalidRequestError:
		return "*llm.InvalidRequestError"
	case *AuthenticationError:
		return "*llm.AuthenticationError"
	case *AccessDeniedError:
		return "*llm.AccessDeniedError"
	case *NotFoundError:
		return "*llm.NotFoundError"
	case *RequestTimeoutError:
		return "*llm.RequestTimeoutError"
	case *ContextLengthError:
		return "*llm.ContextLengthError"
	case *RateLimitError:
		return "*llm.RateLimitError"
	case *ServerError:
		return "*llm.ServerError"
	case *ProviderError:
		return "*llm.ProviderError"
	default:
		return "unknown"
	}
}

func TestErrorFromStatusCodeRetryAfter(t *testing.T) {
	after := 12.0
	err := ErrorFromStatusCode(429, "slow down", "anthropic", &after)
	rl, ok := err.(*RateLimitError)
	if !ok {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if rl.RetryAfter == nil || *rl.RetryAfter != 12.0 {
		t.Errorf("RetryAfter = %v", rl.RetryAfter)
	}
}

func TestIsRetryableNonProviderErrors(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(&ConfigurationError{}) {
		t.Error("configuration errors are not retryable")
	}
	if IsRetryable(&InvalidResponseError{}) {
		t.Error("invalid response errors are not retryable")
	}
	if !IsRetryable(&NetworkError{}) {
		t.Error("network errors should be retryable")
	}
	if !IsRetryable(&RequestTimeoutError{}) {
		t.Error("timeouts should be retryable")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := ErrorFromStatusCode(500, "internal error", "anthropic", nil)
	msg := err.Error()
	if msg == "" || msg == "internal error" {
		t.Errorf("expected annotated message, got %q", msg)
	}
}
