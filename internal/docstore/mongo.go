package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
)

const streamRetryDelay = 2 * time.Second

// MongoStore keeps each collection as a MongoDB collection with string ids.
// Live queries are driven by change streams, which require a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	hub    *Hub
	log    *logger.Logger

	mu      sync.Mutex
	streams map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ConnectMongo connects to uri, verifies the primary is reachable and
// returns a store on the named database.
func ConnectMongo(ctx context.Context, uri, database string, log *logger.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", mapMongoError(err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", mapMongoError(err))
	}

	return &MongoStore{
		client:  client,
		db:      client.Database(database),
		hub:     NewHub(),
		log:     log.WithComponent("docstore.mongo"),
		streams: make(map[string]context.CancelFunc),
	}, nil
}

// Collection returns a handle on the named collection.
func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{store: s, name: name, coll: s.db.Collection(name)}
}

// Ping checks that the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return mapMongoError(s.client.Ping(ctx, readpref.Primary()))
}

// Close stops every change stream and disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	s.mu.Lock()
	for name, cancel := range s.streams {
		cancel()
		delete(s.streams, name)
	}
	s.mu.Unlock()
	s.wg.Wait()

	return s.client.Disconnect(ctx)
}

// ensureStream opens the change stream for a collection on first use. The
// first open is synchronous so that deployments without change streams fail
// the Watch call instead of silently never updating.
func (s *MongoStore) ensureStream(coll *mongo.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[coll.Name()]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return mapMongoError(err)
	}

	s.streams[coll.Name()] = cancel
	s.wg.Add(1)
	go s.follow(ctx, coll, stream)
	return nil
}

func (s *MongoStore) follow(ctx context.Context, coll *mongo.Collection, stream *mongo.ChangeStream) {
	defer s.wg.Done()
	name := coll.Name()

	for {
		for stream.Next(ctx) {
			s.hub.Publish(name)
		}
		err := stream.Err()
		_ = stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("Change stream interrupted, reopening", map[string]interface{}{
			"collection": name,
			"error":      fmt.Sprint(err),
		})

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(streamRetryDelay):
			}
			stream, err = coll.Watch(ctx, mongo.Pipeline{})
			if err == nil {
				break
			}
		}
		// Changes may have been missed while the stream was down.
		s.hub.Publish(name)
	}
}

type mongoCollection struct {
	store *MongoStore
	name  string
	coll  *mongo.Collection
}

func (c *mongoCollection) Get(ctx context.Context, id string) (*Document, error) {
	var raw bson.M
	if err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		return nil, mapMongoError(err)
	}
	return mongoDocument(raw), nil
}

func (c *mongoCollection) Find(ctx context.Context, q Query) ([]Document, error) {
	filter, err := mongoFilter(q.Where)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(mongoSort(q.OrderBy))
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoError(err)
	}
	defer cursor.Close(ctx)

	docs := []Document{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", c.name, err)
		}
		docs = append(docs, *mongoDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, mapMongoError(err)
	}
	return docs, nil
}

func (c *mongoCollection) Insert(ctx context.Context, fields map[string]interface{}) (string, error) {
	set, _ := splitMerge(fields)
	doc := bson.M{}
	for k, v := range copyFields(set) {
		doc[k] = v
	}
	id := uuid.NewString()
	doc["_id"] = id

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return "", mapMongoError(err)
	}
	return id, nil
}

func (c *mongoCollection) Merge(ctx context.Context, id string, fields map[string]interface{}) error {
	set, unset := splitMerge(fields)

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = bson.M(copyFields(set))
	}
	if len(unset) > 0 {
		keys := bson.M{}
		for _, k := range unset {
			keys[k] = ""
		}
		update["$unset"] = keys
	}

	if len(update) == 0 {
		n, err := c.coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return mapMongoError(err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}

	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Watch(ctx context.Context, q Query, fn WatchFunc) (func(), error) {
	if _, err := mongoFilter(q.Where); err != nil {
		return nil, err
	}
	if err := c.store.ensureStream(c.coll); err != nil {
		return nil, err
	}
	return watchSnapshots(ctx, c.store.hub, c.name, q, c.Find, fn)
}

func mongoFilter(preds []Predicate) (bson.M, error) {
	if len(preds) == 0 {
		return bson.M{}, nil
	}

	clauses := make([]bson.M, 0, len(preds))
	for _, p := range preds {
		switch p.Op {
		case OpEq:
			clauses = append(clauses, bson.M{p.Field: p.Value})
		case OpIn:
			values, _ := p.Value.([]interface{})
			clauses = append(clauses, bson.M{p.Field: bson.M{"$in": values}})
		case OpGte:
			clauses = append(clauses, bson.M{p.Field: bson.M{"$gte": p.Value}})
		case OpLte:
			clauses = append(clauses, bson.M{p.Field: bson.M{"$lte": p.Value}})
		default:
			return nil, fmt.Errorf("unsupported operator %q", p.Op)
		}
	}
	return bson.M{"$and": clauses}, nil
}

func mongoSort(orders []Order) bson.D {
	sort := make(bson.D, 0, len(orders)+1)
	for _, o := range orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: o.Field, Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

func mongoDocument(raw bson.M) *Document {
	id := fmt.Sprint(raw["_id"])
	delete(raw, "_id")

	fields := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		fields[k] = fromBSON(v)
	}
	return &Document{ID: id, Fields: fields}
}

// fromBSON converts driver value types into the plain Go forms the other
// backends produce.
func fromBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case int32:
		return int64(val)
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = fromBSON(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = fromBSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	}
	return v
}

// mongoErrorCodes that mean the caller lacks rights.
var mongoPermissionCodes = []int{13, 18}

// mapMongoError wraps driver errors with the matching store sentinel.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		for _, code := range mongoPermissionCodes {
			if serverErr.HasErrorCode(code) {
				return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
			}
		}
		if serverErr.HasErrorMessage("quota") {
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "server selection") {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
