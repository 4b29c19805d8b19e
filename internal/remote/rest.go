package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/redis/go-redis/v9"
)

const restPrefix = "/rest/v1/"

// RESTStore talks to a hosted PostgREST-style API.
type RESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

var _ domain.RemoteStore = (*RESTStore)(nil)

// NewRESTStore constructs a client; timeout bounds every request.
func NewRESTStore(baseURL, apiKey string, timeout time.Duration) *RESTStore {
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache enables caching of FetchAll results. Every write drops the
// cached pages of its collection.
func (s *RESTStore) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	s.redis = redisClient
	s.cacheTTL = ttl
}

func (s *RESTStore) endpoint(collection models.Collection, query url.Values) string {
	u := s.baseURL + restPrefix + url.PathEscape(string(collection))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func byID(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

func (s *RESTStore) Insert(ctx context.Context, collection models.Collection, record models.Record) error {
	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint(collection, nil), record)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	if _, err := s.do(req); err != nil {
		return err
	}
	s.invalidate(ctx, collection)
	return nil
}

func (s *RESTStore) FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error) {
	if orderBy == "" {
		orderBy = models.DefaultOrder[collection]
	}
	cacheKey := fmt.Sprintf("remote:%s:%s", collection, orderBy)

	var records []models.Record
	if s.readCache(ctx, cacheKey, &records) {
		return records, nil
	}

	query := url.Values{"select": {"*"}, "order": {orderBy + ".asc"}}
	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint(collection, query), nil)
	if err != nil {
		return nil, err
	}
	body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if err := decodeRecords(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	s.writeCache(ctx, cacheKey, records)
	return records, nil
}

func (s *RESTStore) Update(ctx context.Context, collection models.Collection, id string, record models.Record) error {
	req, err := s.newRequest(ctx, http.MethodPatch, s.endpoint(collection, byID(id)), record)
	if err != nil {
		return err
	}
	if err := s.expectRows(req, collection, id); err != nil {
		return err
	}
	s.invalidate(ctx, collection)
	return nil
}

func (s *RESTStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, s.endpoint(collection, byID(id)), nil)
	if err != nil {
		return err
	}
	if err := s.expectRows(req, collection, id); err != nil {
		return err
	}
	s.invalidate(ctx, collection)
	return nil
}

// expectRows asks for the affected rows back; an empty list means no match.
func (s *RESTStore) expectRows(req *http.Request, collection models.Collection, id string) error {
	req.Header.Set("Prefer", "return=representation")
	body, err := s.do(req)
	if err != nil {
		return err
	}
	var rows []models.Record
	if err := decodeRecords(body, &rows); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	return nil
}

func decodeRecords(body []byte, out *[]models.Record) error {
	if len(bytes.TrimSpace(body)) == 0 {
		*out = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

func (s *RESTStore) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode record: %v", domain.ErrRecordRejected, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecordRejected, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (s *RESTStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrStoreUnavailable, err)
	}
	if resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(resp.StatusCode, body)
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusError(status int, body []byte) error {
	var apiErr restError
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.Message
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	switch {
	case status == http.StatusConflict || apiErr.Code == "23505":
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, detail)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStoreUnavailable, status, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrRecordRejected, status, detail)
	}
}

func (s *RESTStore) readCache(ctx context.Context, key string, out *[]models.Record) bool {
	if s.redis == nil || s.cacheTTL <= 0 {
		return false
	}
	val, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return decodeRecords(val, out) == nil
}

func (s *RESTStore) writeCache(ctx context.Context, key string, records []models.Record) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *RESTStore) invalidate(ctx context.Context, collection models.Collection) {
	if s.redis == nil {
		return
	}
	iter := s.redis.Scan(ctx, 0, fmt.Sprintf("remote:%s:*", collection), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = s.redis.Del(ctx, keys...).Err()
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateRecord)
}
