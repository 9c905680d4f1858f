package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Gammanik/buildsync/internal/protocol"
)

var (
	// ErrUpstreamStatus возвращается, если узел ответил не 200
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	// ErrMissingFilename возвращается, если в ответе нет имени файла в Content-Disposition
	ErrMissingFilename = errors.New("missing filename in Content-Disposition")
	// ErrTruncated возвращается, если получено меньше байт, чем объявлено в Content-Length
	ErrTruncated = errors.New("truncated download")
)

// DefaultTimeout ограничение на один запрос к узлу по умолчанию
const DefaultTimeout = 60 * time.Second

// DownloadInfo описывает полученную сборку
type DownloadInfo struct {
	FileName string // Имя файла из Content-Disposition
	Size     int64  // Количество полученных байт
}

// Client интерфейс для взаимодействия с другими узлами
type Client interface {
	// Check отправляет узлу свои версии и возвращает имена компонентов, которые у нас устарели
	Check(ctx context.Context, nodeURL, password string, versions protocol.VersionList) ([]string, error)

	// Download скачивает сборку компонента с узла в dst
	Download(ctx context.Context, nodeURL, password, component string, dst io.Writer) (*DownloadInfo, error)
}

// HTTPClient реализация Client через HTTP
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// New создает новый HTTP клиент для узлов. timeout ограничивает каждый запрос целиком.
func New(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (c *HTTPClient) post(ctx context.Context, url string, req *protocol.Request) (*http.Response, error) {
	body, contentType, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	return c.client.Do(httpReq)
}

// Check отправляет узлу свои версии и возвращает имена компонентов, которые у нас устарели
func (c *HTTPClient) Check(ctx context.Context, nodeURL, password string, versions protocol.VersionList) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := strings.TrimRight(nodeURL, "/") + "/check"
	resp, err := c.post(ctx, url, protocol.NewCheckRequest(password, versions))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, protocol.MaxBodySize))
		return nil, fmt.Errorf("%w: check returned %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, protocol.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read check response: %w", err)
	}

	return SplitStale(string(body)), nil
}

// Download скачивает сборку компонента с узла в dst
func (c *HTTPClient) Download(ctx context.Context, nodeURL, password, component string, dst io.Writer) (*DownloadInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := strings.TrimRight(nodeURL, "/") + "/download"
	resp, err := c.post(ctx, url, protocol.NewDownloadRequest(password, component))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download of %s returned %d", ErrUpstreamStatus, component, resp.StatusCode)
	}

	filename, err := ParseContentDisposition(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, n, resp.ContentLength)
	}

	return &DownloadInfo{FileName: filename, Size: n}, nil
}

// ParseContentDisposition извлекает параметр filename из заголовка Content-Disposition
func ParseContentDisposition(value string) (string, error) {
	if value == "" {
		return "", ErrMissingFilename
	}

	_, params, err := mime.ParseMediaType(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingFilename, err)
	}

	filename := params["filename"]
	if filename == "" {
		return "", ErrMissingFilename
	}
	return filename, nil
}

// SplitStale разбирает тело ответа /check: имена через '|', пустые и повторы отбрасываются
func SplitStale(body string) []string {
	if body == "" {
		return nil
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	names := []string{}
	for _, name := range strings.Split(body, "|") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !seen.Add(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}
