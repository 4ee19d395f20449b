package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildSelect(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sql, args, err := buildSelect("properties", Query{
		Where: []Predicate{
			Eq("city", "Cali"),
			In("type", "Casa", "house"),
			Gte("price", int64(100)),
			Lte("createdAt", created),
		},
		OrderBy: []Order{{Field: "createdAt", Desc: true}},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "collection = $1")
	assert.Contains(t, sql, "data @> $2::jsonb")
	assert.Contains(t, sql, "data->$3::text IN (SELECT jsonb_array_elements($4::jsonb))")
	assert.Contains(t, sql, "(data->>$5::text)::numeric >= $6::numeric")
	assert.Contains(t, sql, `(data->>$7::text) COLLATE "C" <= $8::text`)
	assert.Contains(t, sql, "ORDER BY data->$9::text DESC NULLS LAST, id ASC")

	require.Len(t, args, 9)
	assert.Equal(t, "properties", args[0])
	assert.JSONEq(t, `{"city":"Cali"}`, args[1].(string))
	assert.JSONEq(t, `["Casa","house"]`, args[3].(string))
	assert.Equal(t, float64(100), args[5])
	assert.Equal(t, "2024-05-01T12:00:00.000000000Z", args[7])
}

func TestBuildSelect_UnsupportedRange(t *testing.T) {
	_, _, err := buildSelect("properties", Query{Where: []Predicate{Gte("tags", []string{"a"})}})
	assert.Error(t, err)
}

func TestEncodeTime_SortsLexically(t *testing.T) {
	a := encodeTime(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	b := encodeTime(time.Date(2024, 1, 1, 10, 0, 0, 5, time.FixedZone("COT", -5*3600)))
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)
}

func TestJSONDocumentRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := encodeJSONDocument(map[string]interface{}{
		"price":     int64(450000000),
		"area":      72.5,
		"createdAt": created,
		"images":    []string{"a.jpg"},
	})
	require.NoError(t, err)

	fields, err := decodeJSONDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(450000000), fields["price"])
	assert.Equal(t, 72.5, fields["area"])
	assert.Equal(t, "2024-05-01T12:00:00.000000000Z", fields["createdAt"])
	assert.Equal(t, []interface{}{"a.jpg"}, fields["images"])
}

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"insufficient privilege", &pgconn.PgError{Code: "42501"}, ErrPermissionDenied},
		{"auth failed", &pgconn.PgError{Code: "28P01"}, ErrPermissionDenied},
		{"disk full", &pgconn.PgError{Code: "53100"}, ErrQuotaExceeded},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrUnavailable},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapPostgresError(tt.err), tt.want)
		})
	}

	plain := errors.New("syntax")
	assert.Equal(t, plain, mapPostgresError(plain))
	assert.NoError(t, mapPostgresError(nil))
}

func TestMongoFilter(t *testing.T) {
	filter, err := mongoFilter([]Predicate{Eq("city", "Cali"), Gte("price", 100), In("type", "Casa")})
	require.NoError(t, err)

	clauses := filter["$and"].([]bson.M)
	require.Len(t, clauses, 3)
	assert.Equal(t, bson.M{"city": "Cali"}, clauses[0])
	assert.Equal(t, bson.M{"price": bson.M{"$gte": 100}}, clauses[1])
	assert.Equal(t, bson.M{"type": bson.M{"$in": []interface{}{"Casa"}}}, clauses[2])

	empty, err := mongoFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMongoSort(t *testing.T) {
	sort := mongoSort([]Order{{Field: "createdAt", Desc: true}})
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, sort)
}

func TestMongoDocument(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := mongoDocument(bson.M{
		"_id":       "abc",
		"createdAt": primitive.NewDateTimeFromTime(created),
		"bedrooms":  int32(3),
		"images":    primitive.A{"a.jpg"},
		"location":  primitive.D{{Key: "lat", Value: 3.4}, {Key: "lng", Value: -76.5}},
	})

	assert.Equal(t, "abc", doc.ID)
	assert.NotContains(t, doc.Fields, "_id")
	assert.True(t, created.Equal(doc.Fields["createdAt"].(time.Time)))
	assert.Equal(t, int64(3), doc.Fields["bedrooms"])
	assert.Equal(t, []interface{}{"a.jpg"}, doc.Fields["images"])
	assert.Equal(t, map[string]interface{}{"lat": 3.4, "lng": -76.5}, doc.Fields["location"])
}

func TestMapMongoError(t *testing.T) {
	assert.ErrorIs(t, mapMongoError(mongo.ErrNoDocuments), ErrNotFound)
	assert.ErrorIs(t, mapMongoError(mongo.ErrClientDisconnected), ErrUnavailable)
	assert.ErrorIs(t, mapMongoError(mongo.CommandError{Code: 13, Message: "not authorized"}), ErrPermissionDenied)
	assert.ErrorIs(t, mapMongoError(mongo.CommandError{Code: 12501, Message: "quota exceeded"}), ErrQuotaExceeded)
	assert.NoError(t, mapMongoError(nil))
}
