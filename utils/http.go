// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound integrations (webhooks, roster sync).
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
