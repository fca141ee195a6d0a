package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/middleware"
	"github.com/pavitra93/go-election-system/shared/utils"
)

// hopHeaders are connection-scoped and never forwarded
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ServiceClient handles HTTP communication with a backend service
type ServiceClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// ServiceClients holds all service clients
type ServiceClients struct {
	AuthService     *ServiceClient
	ElectionService *ServiceClient
}

// NewServiceClient creates a new service client. Redirects are passed back
// to the caller untouched so the email verification redirect reaches the
// browser.
func NewServiceClient(name, baseURL string) *ServiceClient {
	return &ServiceClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ProxyRequest forwards the request to the backend service
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	targetURL := sc.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, c.Request.Body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to create request")
		return
	}
	req.ContentLength = c.Request.ContentLength

	for key, values := range c.Request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	if clientIP, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	if tenantID := c.GetString(middleware.ContextTenantID); tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		logrus.WithError(err).WithField("service", sc.name).Error("Backend request failed")
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to communicate with service")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		c.Writer.Header().Del(h)
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logrus.WithError(err).WithField("service", sc.name).Warn("Failed to stream backend response")
	}
}

// HealthCheck checks if a service is healthy
func (sc *ServiceClient) HealthCheck() error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	return nil
}

// GetServiceStatus returns the status of all services
func (scs *ServiceClients) GetServiceStatus() (map[string]interface{}, bool) {
	status := make(map[string]interface{})
	healthy := true
	for _, sc := range []*ServiceClient{scs.AuthService, scs.ElectionService} {
		if err := sc.HealthCheck(); err != nil {
			healthy = false
			status[sc.name] = gin.H{"healthy": false, "error": err.Error()}
			continue
		}
		status[sc.name] = gin.H{"healthy": true}
	}
	return status, healthy
}
