package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []string
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (transport *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	// Parse each server URL
	serverURLs := make([]string, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		serverURLs[i] = strings.TrimSuffix(parsedURL.String(), "/") + RPCPath
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// Create client with default transport
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(config.ConnectionsPerEndpoint, 1),
			IdleConnTimeout:     timeout,
		},
	}

	// Set the client and server URLs
	transport.client = client
	transport.serverURLs = serverURLs
	transport.counter = 0
	transport.retryCount = max(config.RetryCount, 1)

	// No error
	return nil
}

func (transport *httpClientTransport) Send(req []byte) (resp []byte, err error) {
	// Check if the transport is initialized
	if transport.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	// Send the request (with retries), each attempt goes to the next server via round-robin
	var httpResponse *http.Response
	for i := 0; i < transport.retryCount; i++ {
		idx := atomic.AddUint32(&transport.counter, 1) % uint32(len(transport.serverURLs))
		httpResponse, err = transport.client.Post(transport.serverURLs[idx], "application/json", bytes.NewReader(req))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	// Read the response body
	return io.ReadAll(httpResponse.Body)
}

func (transport *httpClientTransport) Close() error {
	// Close the client
	if transport.client != nil {
		transport.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	transport.client = nil
	transport.serverURLs = nil

	return nil
}
