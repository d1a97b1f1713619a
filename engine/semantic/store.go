package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// pointsAPI and collectionsAPI are the slices of the Qdrant gRPC clients
// the store actually calls; tests substitute them.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Qdrant is the sole owner of all vector index operations.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// NewQdrant creates a store connected to Qdrant at the given gRPC address.
func NewQdrant(addr string, collection string) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Qdrant{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a store over existing clients. Used by tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Qdrant {
	return &Qdrant{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// PointID derives the vector point ID for a record. The mapping is
// deterministic, so rebuilding the index reuses the same points instead of
// accumulating duplicates.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func distanceOf(metric string) (pb.Distance, error) {
	switch metric {
	case "cosine":
		return pb.Distance_Cosine, nil
	case "dot":
		return pb.Distance_Dot, nil
	default:
		return pb.Distance_UnknownDistance, fmt.Errorf("semantic: unsupported metric %q", metric)
	}
}

// EnsureCollection creates the collection if it doesn't exist.
func (q *Qdrant) EnsureCollection(ctx context.Context, dims int, metric string) error {
	distance, err := distanceOf(metric)
	if err != nil {
		return err
	}

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: distance,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}

// ValidateCollection checks the live collection against the configured
// dimensionality and metric. A mismatch is a startup configuration error;
// serving with it would silently produce garbage similarities.
func (q *Qdrant) ValidateCollection(ctx context.Context, dims int, metric string) error {
	want, err := distanceOf(metric)
	if err != nil {
		return err
	}
	resp, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("semantic: describe collection %s: %w", q.collection, err)
	}
	params := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("semantic: collection %s has no vector params", q.collection)
	}
	if got := int(params.GetSize()); got != dims {
		return fmt.Errorf("collection %s: index dims %d, configured %d: %w",
			q.collection, got, dims, domain.ErrDimensionMismatch)
	}
	if got := params.GetDistance(); got != want {
		return fmt.Errorf("collection %s: index metric %s, configured %s: %w",
			q.collection, got, want, domain.ErrMetricMismatch)
	}
	return nil
}

// DeleteCollection drops the collection. Used by full index rebuilds.
func (q *Qdrant) DeleteCollection(ctx context.Context) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert stores record points. Called by the index builder.
func (q *Qdrant) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := map[string]*pb.Value{
			"record_id": stringValue(r.RecordID),
			"summary":   stringValue(r.Summary),
		}
		if r.VIN != "" {
			payload["vin"] = stringValue(r.VIN)
		}
		if r.Model != "" {
			payload["model"] = stringValue(r.Model)
		}
		if r.InspectedAt != "" {
			payload["inspected_at"] = stringValue(r.InspectedAt)
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.RecordID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// DeleteByRecordIDs removes the points for the given records. The point
// IDs are derived, so no scan or payload index is needed.
func (q *Qdrant) DeleteByRecordIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %d points: %w", len(ids), err)
	}
	return nil
}

// Nearest performs k-NN similarity search and returns raw neighbors. The
// record ID comes from the point payload; a point without one resolves to
// an empty ID and is dropped downstream as stale.
func (q *Qdrant) Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	out := make([]Neighbor, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		out[i] = Neighbor{
			RecordID: r.GetPayload()["record_id"].GetStringValue(),
			Score:    r.GetScore(),
		}
	}
	return out, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
