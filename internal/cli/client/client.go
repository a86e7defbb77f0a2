package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"tradepilot/internal/common"
)

// Client talks to the pipeline server and keeps the login token between commands.
type Client struct {
	serverURL string
	token     string
	http      *http.Client
}

// New builds a client for serverURL. caCertPath may be empty to use the system pool.
func New(serverURL, caCertPath string) *Client {
	return &Client{
		serverURL: serverURL,
		http: &http.Client{
			Transport: createTLSConfig(caCertPath),
			Timeout:   2 * time.Minute,
		},
	}
}

// FromEnv reads PIPELINE_SERVER_URL and CA_CERT_PATH.
func FromEnv() *Client {
	serverURL := os.Getenv("PIPELINE_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	return New(serverURL, os.Getenv("CA_CERT_PATH"))
}

func (c *Client) SaveToken(t string) {
	c.token = t
}

func (c *Client) Token() string {
	return c.token
}

// Do sends the request and decodes the response envelope; data is decoded into out when out is not nil.
func (c *Client) Do(method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.serverURL+path, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 服务端在 token 临近过期时会下发新 token
	if refreshed, err := common.GetAuthorizationToken(resp.Header.Get("Authorization")); err == nil {
		c.token = refreshed
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body failed: %w", err)
	}
	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (%s): %s", resp.Status, string(raw))
	}
	if envelope.Code != common.SuccessCode {
		return common.ErrNo{ErrCode: envelope.Code, ErrMsg: envelope.Message}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func createTLSConfig(caCertPath string) *http.Transport {
	tlsConfig := &tls.Config{}

	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath)
		if err != nil {
			fmt.Printf("fail to read ca cert: %v\n", err)
		} else {
			caCertPool := x509.NewCertPool()
			if caCertPool.AppendCertsFromPEM(caCert) {
				tlsConfig.RootCAs = caCertPool
			} else {
				fmt.Println("fail to parse ca cert, use system default cert pool")
			}
		}
	}
	return &http.Transport{
		TLSClientConfig: tlsConfig,
	}
}
