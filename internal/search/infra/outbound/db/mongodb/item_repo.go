package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/pujalab/internal/search/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// ItemRepoMongoDB guarda la proyección de búsqueda en la colección "items".
type ItemRepoMongoDB struct {
	coll *mongo.Collection
}

var _ domain.ItemRepository = (*ItemRepoMongoDB)(nil)

func NewItemRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*ItemRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &ItemRepoMongoDB{coll: client.Database(dbName).Collection("items")}, nil
}

// EnsureIndexes crea el índice de texto de la búsqueda y los de orden.
func (r *ItemRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "make", Value: "text"}, {Key: "model", Value: "text"}, {Key: "color", Value: "text"}},
			Options: options.Index().SetName("items_text"),
		},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "auctionEnd", Value: 1}}},
	})
	return err
}

// --- Structs de BSON para el mapeo ---

type mongoItem struct {
	ID             string    `bson:"_id"`
	ReservePrice   int       `bson:"reservePrice"`
	Seller         string    `bson:"seller"`
	Winner         string    `bson:"winner,omitempty"`
	SoldAmount     *int      `bson:"soldAmount,omitempty"`
	CurrentHighBid *int      `bson:"currentHighBid,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
	AuctionEnd     time.Time `bson:"auctionEnd"`
	Status         string    `bson:"status"`
	Make           string    `bson:"make"`
	Model          string    `bson:"model"`
	Year           int       `bson:"year"`
	Color          string    `bson:"color"`
	Mileage        int       `bson:"mileage"`
	ImageURL       string    `bson:"imageUrl"`
	LastEventID    string    `bson:"lastEventId,omitempty"`
	LastEventAt    time.Time `bson:"lastEventAt,omitempty"`
}

// --- Escritura desde eventos ---

func (r *ItemRepoMongoDB) InsertIfAbsent(ctx context.Context, item domain.Item) (bool, error) {
	if _, err := r.coll.InsertOne(ctx, toMongoItem(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ItemRepoMongoDB) ApplyUpdate(ctx context.Context, upd sharedEvents.AuctionUpdated, stamp domain.EventStamp) error {
	set := stampFields(stamp)
	if upd.Make != nil {
		set["make"] = *upd.Make
	}
	if upd.Model != nil {
		set["model"] = *upd.Model
	}
	if upd.Color != nil {
		set["color"] = *upd.Color
	}
	if upd.Year != nil {
		set["year"] = *upd.Year
	}
	if upd.Mileage != nil {
		set["mileage"] = *upd.Mileage
	}
	if !upd.UpdatedAt.IsZero() {
		set["updatedAt"] = upd.UpdatedAt.UTC()
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": upd.ID.String()}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *ItemRepoMongoDB) RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, stamp domain.EventStamp) (bool, error) {
	filter := bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"currentHighBid": nil},
			bson.M{"currentHighBid": bson.M{"$lt": amount}},
		},
	}
	set := stampFields(stamp)
	set["currentHighBid"] = amount
	return r.conditionalUpdate(ctx, id, filter, bson.M{"$set": set})
}

func (r *ItemRepoMongoDB) MarkFinished(ctx context.Context, evt sharedEvents.AuctionFinished, stamp domain.EventStamp) (bool, error) {
	filter := bson.M{"_id": evt.AuctionID.String(), "status": domain.StatusLive}
	set := stampFields(stamp)
	set["status"] = domain.FinishedStatus(evt)
	set["winner"] = evt.Winner
	if evt.ItemSold && evt.Amount != nil {
		set["soldAmount"] = *evt.Amount
	}
	return r.conditionalUpdate(ctx, evt.AuctionID, filter, bson.M{"$set": set})
}

// conditionalUpdate distingue "no se cumple la condición" de "no existe el item".
func (r *ItemRepoMongoDB) conditionalUpdate(ctx context.Context, id uuid.UUID, filter, update bson.M) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id.String()}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, domain.ErrItemNotFound
	}
	return false, nil
}

func stampFields(s domain.EventStamp) bson.M {
	return bson.M{"lastEventId": s.ID.String(), "lastEventAt": s.At.UTC()}
}

// --- Sincronización ---

func (r *ItemRepoMongoDB) LatestUpdatedAt(ctx context.Context) (*time.Time, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetProjection(bson.M{"updatedAt": 1})

	var doc struct {
		UpdatedAt time.Time `bson:"updatedAt"`
	}
	if err := r.coll.FindOne(ctx, bson.M{}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	at := doc.UpdatedAt.UTC()
	return &at, nil
}

// UpsertMany solo reemplaza si el documento guardado no es más nuevo. Si lo es,
// el filtro no casa y el upsert choca con el _id existente: ese item se salta.
func (r *ItemRepoMongoDB) UpsertMany(ctx context.Context, items []domain.Item) (int, error) {
	written := 0
	for _, item := range items {
		set, err := snapshotFields(item)
		if err != nil {
			return written, err
		}
		update := bson.M{"$set": set}
		if item.CurrentHighBid != nil {
			update["$max"] = bson.M{"currentHighBid": *item.CurrentHighBid}
		}

		filter := bson.M{"_id": item.ID.String(), "updatedAt": bson.M{"$lte": item.UpdatedAt.UTC()}}
		if _, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return written, err
		}
		written++
	}
	return written, nil
}

// snapshotFields son los campos que la sincronización sobrescribe.
func snapshotFields(item domain.Item) (bson.M, error) {
	raw, err := bson.Marshal(toMongoItem(item))
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	for _, key := range []string{"_id", "currentHighBid", "lastEventId", "lastEventAt"} {
		delete(set, key)
	}
	return set, nil
}

// --- Lectura ---

func (r *ItemRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	var doc mongoItem
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return fromMongoItem(doc)
}

func (r *ItemRepoMongoDB) Search(ctx context.Context, params domain.SearchParams, now time.Time) (domain.SearchResult, error) {
	params = params.Normalize()
	filter := searchFilter(params, now.UTC())

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return domain.SearchResult{}, err
	}

	opts := options.Find().
		SetSort(searchSort(params)).
		SetSkip(int64(params.Skip())).
		SetLimit(int64(params.PageSize))
	if params.SearchTerm != "" {
		opts.SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return domain.SearchResult{}, err
	}
	defer cursor.Close(ctx)

	results := make([]domain.Item, 0, params.PageSize)
	for cursor.Next(ctx) {
		var doc mongoItem
		if err := cursor.Decode(&doc); err != nil {
			return domain.SearchResult{}, err
		}
		item, err := fromMongoItem(doc)
		if err != nil {
			return domain.SearchResult{}, err
		}
		results = append(results, *item)
	}
	if err := cursor.Err(); err != nil {
		return domain.SearchResult{}, err
	}

	return domain.SearchResult{
		Results:    results,
		PageCount:  domain.PageCount(total, params.PageSize),
		TotalCount: total,
	}, nil
}

func searchFilter(p domain.SearchParams, now time.Time) bson.D {
	filter := bson.D{}
	switch p.FilterBy {
	case domain.FilterByFinished:
		filter = append(filter, bson.E{Key: "auctionEnd", Value: bson.M{"$lt": now}})
	case domain.FilterByEndingSoon:
		filter = append(filter, bson.E{Key: "auctionEnd", Value: bson.M{"$gt": now, "$lt": now.Add(domain.EndingSoonWindow)}})
	default:
		filter = append(filter, bson.E{Key: "auctionEnd", Value: bson.M{"$gt": now}})
	}
	if p.Seller != "" {
		filter = append(filter, bson.E{Key: "seller", Value: p.Seller})
	}
	if p.Winner != "" {
		filter = append(filter, bson.E{Key: "winner", Value: p.Winner})
	}
	if p.SearchTerm != "" {
		filter = append(filter, bson.E{Key: "$text", Value: bson.M{"$search": p.SearchTerm}})
	}
	return filter
}

// searchSort pone primero la relevancia del texto si hay término de búsqueda.
func searchSort(p domain.SearchParams) bson.D {
	sort := bson.D{}
	if p.SearchTerm != "" {
		sort = append(sort, bson.E{Key: "score", Value: bson.M{"$meta": "textScore"}})
	}
	switch p.OrderBy {
	case domain.OrderByMake:
		sort = append(sort, bson.E{Key: "make", Value: 1}, bson.E{Key: "model", Value: 1})
	case domain.OrderByNew:
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	default:
		sort = append(sort, bson.E{Key: "auctionEnd", Value: 1})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

// --- Helpers de Mapeo y Conversión ---

func toMongoItem(i domain.Item) mongoItem {
	doc := mongoItem{
		ID: i.ID.String(), ReservePrice: i.ReservePrice, Seller: i.Seller, Winner: i.Winner,
		SoldAmount: i.SoldAmount, CurrentHighBid: i.CurrentHighBid,
		CreatedAt: i.CreatedAt.UTC(), UpdatedAt: i.UpdatedAt.UTC(), AuctionEnd: i.AuctionEnd.UTC(),
		Status: i.Status, Make: i.Make, Model: i.Model, Year: i.Year, Color: i.Color,
		Mileage: i.Mileage, ImageURL: i.ImageURL, LastEventAt: i.LastEventAt,
	}
	if i.LastEventID != uuid.Nil {
		doc.LastEventID = i.LastEventID.String()
	}
	return doc
}

func fromMongoItem(doc mongoItem) (*domain.Item, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid item id %q: %w", doc.ID, err)
	}
	item := &domain.Item{
		ID: id, ReservePrice: doc.ReservePrice, Seller: doc.Seller, Winner: doc.Winner,
		SoldAmount: doc.SoldAmount, CurrentHighBid: doc.CurrentHighBid,
		CreatedAt: doc.CreatedAt.UTC(), UpdatedAt: doc.UpdatedAt.UTC(), AuctionEnd: doc.AuctionEnd.UTC(),
		Status: doc.Status, Make: doc.Make, Model: doc.Model, Year: doc.Year, Color: doc.Color,
		Mileage: doc.Mileage, ImageURL: doc.ImageURL, LastEventAt: doc.LastEventAt.UTC(),
	}
	if doc.LastEventID != "" {
		if item.LastEventID, err = uuid.Parse(doc.LastEventID); err != nil {
			return nil, fmt.Errorf("invalid last event id %q: %w", doc.LastEventID, err)
		}
	}
	return item, nil
}
