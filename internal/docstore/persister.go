// Package docstore locates and mutates the target record of a finished
// generation. The record's storage shape is ambiguous: its identifier may be
// a native ObjectID or an opaque string, and it may live as a top-level
// document or inside one of several differently named child arrays. The
// persister resolves the ambiguity with a fixed ordered attempt list.
package docstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"edurender/internal/pkg/logger"
)

// Storage tags recorded on the target record.
const (
	StoredRemote         = "remote_object_store"
	StoredProviderNative = "provider_native"
)

// sampleLimit caps the diagnostic sample attached to not-found results.
const sampleLimit = 3

// PersistRequest carries one media-URL write against a target record.
// The superset signature (video plus subtitle) is the canonical contract.
type PersistRequest struct {
	VideoURL    string
	SubtitleURL string
	StoredIn    string
	RecordID    string
	Database    string
	Collection  string
}

// PersistResult reports how (and whether) the record was found.
type PersistResult struct {
	Success    bool     `json:"success"`
	Method     string   `json:"method"`
	Collection string   `json:"collection"`
	Matched    int64    `json:"matchedCount"`
	Modified   int64    `json:"modifiedCount"`
	// Diagnostics, populated only on not_found.
	IDWasObjectID bool     `json:"idWasObjectId"`
	SampleDocs    []bson.M `json:"sampleDocuments,omitempty"`
}

// updatable is the slice of *mongo.Collection the persister needs.
type updatable interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Persister finds and updates target records.
type Persister struct {
	client  *mongo.Client
	content *ContentServiceClient
	log     *logger.Logger
	now     func() time.Time

	collFn   func(database, collection string) updatable
	sampleFn func(ctx context.Context, database, collection string) []bson.M
}

// NewPersister creates a Persister. content may be nil, which disables the
// best-effort front door without altering correctness.
func NewPersister(client *mongo.Client, content *ContentServiceClient, log *logger.Logger) *Persister {
	if log == nil {
		log = logger.NewDefault()
	}
	p := &Persister{
		client:  client,
		content: content,
		log:     log.WithComponent("docstore"),
		now:     time.Now,
	}
	p.collFn = func(database, collection string) updatable {
		return client.Database(database).Collection(collection)
	}
	p.sampleFn = p.sampleDocuments
	return p
}

// Persist writes the media URLs onto the target record, wherever it lives.
// The write is a total overwrite of the target fields, so repeated calls
// with the same arguments converge; retries are safe. A record found in no
// shape yields a not_found result, not an error.
func (p *Persister) Persist(ctx context.Context, req PersistRequest) PersistResult {
	log := p.log.FromContext(ctx)

	result := PersistResult{
		Method:     MethodNotFound,
		Collection: req.Collection,
	}

	if req.StoredIn == "" {
		req.StoredIn = StoredRemote
	}

	// Best-effort front door: offer the write to the system of record
	// first. Confirmation short-circuits; anything else falls through to
	// the direct path.
	if p.content != nil {
		confirmed, err := p.content.Update(ctx, req)
		if err != nil {
			log.Warn("content service unreachable, falling back to direct write", "error", err.Error())
		} else if confirmed {
			result.Success = true
			result.Method = MethodContentService
			log.Info("record updated via content service", "record_id", req.RecordID)
			return result
		}
	}

	ids, isObjectID := candidateIDs(req.RecordID)
	result.IDWasObjectID = isObjectID

	fields := p.updateFields(req)
	coll := p.collFn(req.Database, req.Collection)

	for _, id := range ids {
		for _, st := range strategies {
			res, err := coll.UpdateOne(ctx, st.filter(id), st.update(fields))
			if err != nil {
				// Transport errors on one attempt are logged and treated
				// as a miss; the scan continues.
				log.Warn("update attempt failed",
					"method", st.method,
					"record_id", req.RecordID,
					"error", err.Error(),
				)
				continue
			}
			if res.MatchedCount > 0 {
				result.Success = true
				result.Method = st.method
				result.Matched = res.MatchedCount
				result.Modified = res.ModifiedCount
				log.Info("record updated",
					"method", st.method,
					"record_id", req.RecordID,
					"matched", res.MatchedCount,
					"modified", res.ModifiedCount,
				)
				return result
			}
		}
	}

	result.SampleDocs = p.sampleFn(ctx, req.Database, req.Collection)
	log.Warn("record not found in any known shape",
		"record_id", req.RecordID,
		"collection", req.Collection,
		"parsed_as_object_id", isObjectID,
		"sample_count", len(result.SampleDocs),
	)
	return result
}

func (p *Persister) updateFields(req PersistRequest) bson.M {
	fields := bson.M{
		"videoUrl":  req.VideoURL,
		"storedIn":  req.StoredIn,
		"updatedAt": p.now().UTC(),
		"videoPath": pathFragment(req.VideoURL),
	}
	if req.SubtitleURL != "" {
		fields["subtitleUrl"] = req.SubtitleURL
	} else {
		fields["subtitleUrl"] = nil
	}
	return fields
}

// sampleDocuments fetches a few documents for operator debugging when the
// record cannot be located.
func (p *Persister) sampleDocuments(ctx context.Context, database, collection string) []bson.M {
	findCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cur, err := p.client.Database(database).Collection(collection).Find(findCtx, bson.M{}, options.Find().SetLimit(sampleLimit))
	if err != nil {
		return nil
	}
	var docs []bson.M
	if err := cur.All(findCtx, &docs); err != nil {
		return nil
	}
	return docs
}

// candidateIDs returns the identifier encodings to try, binary form first
// when the id parses as a native ObjectID.
func candidateIDs(recordID string) ([]any, bool) {
	if oid, err := primitive.ObjectIDFromHex(recordID); err == nil {
		return []any{oid, recordID}, true
	}
	return []any{recordID}, false
}

// pathFragment extracts the storage path portion of a video URL.
func pathFragment(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
