package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yukikurage/todo-api/internal/models"
)

var (
	testNow   = time.Date(2026, time.October, 14, 10, 30, 0, 0, time.UTC)
	testToday = models.DateOf(testNow)
)

func fixedClock() time.Time { return testNow }

// memoryCache is an in-process StatsCache.
type memoryCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	deleted  []string
	claims   int
	failWith error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return false, c.failWith
	}
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	return nil
}

func (c *memoryCache) Claim(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return "", c.failWith
	}
	c.claims++
	token := fmt.Sprintf("claim-%d", c.claims)
	c.data[key+":fill"] = []byte(token)
	return token, nil
}

func (c *memoryCache) SetClaimed(ctx context.Context, key, token string, value any) (bool, error) {
	c.mu.Lock()
	if c.failWith != nil {
		c.mu.Unlock()
		return false, c.failWith
	}
	if string(c.data[key+":fill"]) != token {
		c.mu.Unlock()
		return false, nil
	}
	delete(c.data, key+":fill")
	c.mu.Unlock()
	if err := c.Set(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	if c.failWith != nil {
		return c.failWith
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

var errCacheDown = errors.New("cache down")

type fakeSuggester struct {
	tasks []GeneratedTask
	err   error
	text  string
	today models.Date
}

func (f *fakeSuggester) GenerateTasksFromText(_ context.Context, text string, today models.Date) ([]GeneratedTask, error) {
	f.text = text
	f.today = today
	return f.tasks, f.err
}

func ptr[T any](v T) *T { return &v }
