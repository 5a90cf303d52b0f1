package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFlightStatus is a test struct for serialization
type TestFlightStatus struct {
	FlightNumber string `json:"flight_number"`
	Status       string `json:"status"`
	DelayMinutes int    `json:"delay_minutes"`
	Disrupted    bool   `json:"disrupted"`
}

func setupTestCache(t *testing.T) (CacheClient, *miniredis.Miniredis) {
	// Start miniredis server
	mr := miniredis.RunT(t)

	// Create Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	// Create cache client
	cache := NewCacheClient(rdb)

	return cache, mr
}

func TestNewCacheClient(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewCacheClient(rdb)
	assert.NotNil(t, cache)
}

func TestCacheGet_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Prepare test data
	status := TestFlightStatus{
		FlightNumber: "AA123",
		Status:       "DELAYED",
		DelayMinutes: 45,
		Disrupted:    true,
	}

	// Set value first
	key := BuildCacheKey(CacheKeyFlightStatus, "AA123", "20260301")
	err := cache.Set(ctx, key, status, TTLFlightStatus)
	require.NoError(t, err)

	// Get value
	var retrieved TestFlightStatus
	err = cache.Get(ctx, key, &retrieved)
	require.NoError(t, err)

	// Verify data
	assert.Equal(t, status.FlightNumber, retrieved.FlightNumber)
	assert.Equal(t, status.Status, retrieved.Status)
	assert.Equal(t, status.DelayMinutes, retrieved.DelayMinutes)
	assert.Equal(t, status.Disrupted, retrieved.Disrupted)
}

func TestCacheGet_KeyNotFound(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Try to get non-existent key
	var retrieved TestFlightStatus
	err := cache.Get(ctx, "nonexistent:key", &retrieved)

	// Should return ErrCacheNotFound
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set invalid JSON manually
	key := "test:invalid"
	_ = mr.Set(key, "invalid json {{{") // Intentionally set invalid data for testing

	// Try to get and deserialize
	var retrieved TestFlightStatus
	err := cache.Get(ctx, key, &retrieved)

	// Should return error
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestCacheSet_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	status := TestFlightStatus{
		FlightNumber: "UA456",
		Status:       "ON_TIME",
	}

	key := BuildCacheKey(CacheKeyFlightStatus, "UA456", "20260301")
	err := cache.Set(ctx, key, status, TTLFlightStatus)
	require.NoError(t, err)

	// Verify key exists in miniredis
	exists := mr.Exists(key)
	assert.True(t, exists)
}

func TestCacheSet_WithTTL(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	status := TestFlightStatus{FlightNumber: "DL789", Status: "CANCELLED"}

	key := BuildCacheKey(CacheKeyFlightStatus, "DL789", "20260301")
	ttl := 1 * time.Second

	err := cache.Set(ctx, key, status, ttl)
	require.NoError(t, err)

	// Verify TTL is set in miniredis
	currentTTL := mr.TTL(key)
	assert.Greater(t, currentTTL, time.Duration(0))
	assert.LessOrEqual(t, currentTTL, ttl)
}

func TestCacheDelete_Success(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set a value first
	status := TestFlightStatus{FlightNumber: "SW111", Status: "ON_TIME"}
	key := BuildCacheKey(CacheKeyFlightStatus, "SW111", "20260301")
	err := cache.Set(ctx, key, status, TTLFlightStatus)
	require.NoError(t, err)

	// Verify key exists
	exists := mr.Exists(key)
	assert.True(t, exists)

	// Delete the key
	err = cache.Delete(ctx, key)
	require.NoError(t, err)

	// Verify key is deleted
	exists = mr.Exists(key)
	assert.False(t, exists)
}

func TestCacheDelete_NonExistentKey(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Delete non-existent key should not error
	err := cache.Delete(ctx, "nonexistent:key")
	assert.NoError(t, err)
}

func TestCacheExists_KeyExists(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set a value
	status := TestFlightStatus{FlightNumber: "AA222", Status: "ON_TIME"}
	key := BuildCacheKey(CacheKeyBooking, "222")
	err := cache.Set(ctx, key, status, TTLBooking)
	require.NoError(t, err)

	// Check existence
	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCacheExists_KeyNotExists(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Check non-existent key
	exists, err := cache.Exists(ctx, "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildCacheKey(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		prefix   string
		parts    []string
	}{
		{
			name:     "flight status key",
			prefix:   CacheKeyFlightStatus,
			parts:    []string{"AA123", "20260301"},
			expected: "flight_status:AA123:20260301",
		},
		{
			name:     "booking key",
			prefix:   CacheKeyBooking,
			parts:    []string{"456"},
			expected: "booking:456",
		},
		{
			name:     "wallet key",
			prefix:   CacheKeyWallet,
			parts:    []string{"42"},
			expected: "wallet:42",
		},
		{
			name:     "quota key with multiple parts",
			prefix:   CacheKeyQuota,
			parts:    []string{"FlightAware", "minute"},
			expected: "quota:FlightAware:minute",
		},
		{
			name:     "rule set key",
			prefix:   CacheKeyRules,
			parts:    []string{},
			expected: "compensation_rules",
		},
		{
			name:     "no parts",
			prefix:   CacheKeyBooking,
			parts:    []string{},
			expected: "booking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildCacheKey(tt.prefix, tt.parts...)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFlightStatusCacheKey(t *testing.T) {
	departure := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "flight_status:AA123:20260301", FlightStatusCacheKey("AA123", departure))
}

func TestCacheClient_AllKeyTypes(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	tests := []struct {
		name   string
		prefix string
		id     string
		ttl    time.Duration
	}{
		{"flight_status", CacheKeyFlightStatus, "AA123", TTLFlightStatus},
		{"booking", CacheKeyBooking, "11", TTLBooking},
		{"wallet", CacheKeyWallet, "42", TTLWallet},
		{"rules", CacheKeyRules, "active", TTLRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create test data
			data := map[string]interface{}{
				"id":   tt.id,
				"type": tt.name,
			}

			// Set cache
			key := BuildCacheKey(tt.prefix, tt.id)
			err := cache.Set(ctx, key, data, tt.ttl)
			require.NoError(t, err)

			// Get cache
			var retrieved map[string]interface{}
			err = cache.Get(ctx, key, &retrieved)
			require.NoError(t, err)
			assert.Equal(t, tt.id, retrieved["id"])
			assert.Equal(t, tt.name, retrieved["type"])

			// Check existence
			exists, err := cache.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)

			// Delete cache
			err = cache.Delete(ctx, key)
			require.NoError(t, err)

			// Verify deletion
			exists, err = cache.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestCacheTTLExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Set cache with short TTL
	status := TestFlightStatus{FlightNumber: "AA123", Status: "ON_TIME"}
	key := BuildCacheKey(CacheKeyFlightStatus, "AA123", "20260301")
	shortTTL := 100 * time.Millisecond

	err := cache.Set(ctx, key, status, shortTTL)
	require.NoError(t, err)

	// Verify key exists
	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	// Fast forward time in miniredis
	mr.FastForward(200 * time.Millisecond)

	// Key should be expired now
	exists, err = cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Get should return ErrCacheNotFound
	var retrieved TestFlightStatus
	err = cache.Get(ctx, key, &retrieved)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCacheClient_NilRedisClient(t *testing.T) {
	// Create cache with nil Redis client
	cache := NewCacheClient(nil)
	ctx := context.Background()

	// All operations should return error gracefully
	status := TestFlightStatus{FlightNumber: "AA123"}

	err := cache.Set(ctx, "key", status, TTLFlightStatus)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	var retrieved TestFlightStatus
	err = cache.Get(ctx, "key", &retrieved)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	err = cache.Delete(ctx, "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis client is nil")

	exists, err := cache.Exists(ctx, "key")
	assert.Error(t, err)
	assert.False(t, exists)
	assert.Contains(t, err.Error(), "redis client is nil")
}

func TestCacheClient_ComplexStructSerialization(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()

	ctx := context.Background()

	// Test complex nested struct
	type Segment struct {
		FlightNumber string `json:"flight_number"`
		Origin       string `json:"origin"`
		Destination  string `json:"destination"`
	}

	type ComplexItinerary struct {
		CreatedAt time.Time         `json:"created_at"`
		Segments  []Segment         `json:"segments"`
		Metadata  map[string]string `json:"metadata"`
		PNR       string            `json:"pnr"`
		Airline   string            `json:"airline"`
	}

	original := ComplexItinerary{
		PNR:     "ABC123",
		Airline: "American Airlines",
		Segments: []Segment{
			{FlightNumber: "AA100", Origin: "JFK", Destination: "LHR"},
			{FlightNumber: "AA200", Origin: "LHR", Destination: "CDG"},
		},
		Metadata: map[string]string{
			"class":  "Business",
			"status": "CONFIRMED",
		},
		CreatedAt: time.Now().Round(time.Second), // Round to second for JSON comparison
	}

	key := BuildCacheKey(CacheKeyBooking, "complex1")

	// Set
	err := cache.Set(ctx, key, original, TTLBooking)
	require.NoError(t, err)

	// Get
	var retrieved ComplexItinerary
	err = cache.Get(ctx, key, &retrieved)
	require.NoError(t, err)

	// Verify all fields
	assert.Equal(t, original.PNR, retrieved.PNR)
	assert.Equal(t, original.Airline, retrieved.Airline)
	assert.Equal(t, len(original.Segments), len(retrieved.Segments))
	assert.Equal(t, original.Segments[0].FlightNumber, retrieved.Segments[0].FlightNumber)
	assert.Equal(t, original.Metadata["class"], retrieved.Metadata["class"])
	assert.True(t, original.CreatedAt.Equal(retrieved.CreatedAt))
}
