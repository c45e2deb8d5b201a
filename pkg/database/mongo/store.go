package mongo

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store 是 database.Store 的 MongoDB 实现。
// 每张数据表对应一个同名集合，计数记录存放在 photo_clicks 集合中。
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	counters *mongo.Collection
}

// 确保 Store 实现了 database.Store 接口 (编译时检查)
var _ database.Store = (*Store)(nil)

// NewStore 建立与 MongoDB 的连接并返回 Store。
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	slog.Info("正在连接到 MongoDB...", "uri", cfg.Database.URI)
	clientCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.Database.URI)
	client, err := mongo.Connect(clientCtx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(clientCtx, nil); err != nil {
		return nil, err
	}
	slog.Info("MongoDB 连接成功")

	db := client.Database(cfg.Database.Name)
	return &Store{
		client:   client,
		db:       db,
		counters: db.Collection(database.CountersTable),
	}, nil
}

// EnsureIndexes 为计数集合建立 (table_name, photo_id) 唯一索引。
func (s *Store) EnsureIndexes(ctx context.Context) error {
	slog.Info("正在确保数据库索引存在...")
	counterIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "table_name", Value: 1}, {Key: "photo_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_table_photo_unique"),
		},
	}
	if _, err := s.counters.Indexes().CreateMany(ctx, counterIndexes); err != nil {
		slog.Error("为 photo_clicks 集合创建索引失败", "error", err)
		return err
	}
	slog.Info("photo_clicks 集合索引已验证/创建。")
	return nil
}

// FetchAll 读取整个集合，不做过滤。没有 id 字段的文档用 _id 补上。
func (s *Store) FetchAll(ctx context.Context, table string) ([]models.RawRecord, error) {
	cursor, err := s.db.Collection(table).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]models.RawRecord, 0, len(docs))
	for _, doc := range docs {
		rec := models.RawRecord(doc)
		if _, ok := rec["id"]; !ok {
			if oid, ok := rec["_id"].(primitive.ObjectID); ok {
				rec["id"] = oid.Hex()
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) FetchCounters(ctx context.Context) (map[string]models.CounterRecord, error) {
	cursor, err := s.counters.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []models.CounterRecord
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	out := make(map[string]models.CounterRecord, len(list))
	for _, rec := range list {
		out[rec.Key()] = rec
	}
	return out, nil
}

func (s *Store) GetCounter(ctx context.Context, table, photoID string) (*models.CounterRecord, error) {
	var rec models.CounterRecord
	err := s.counters.FindOne(ctx, bson.M{"table_name": table, "photo_id": photoID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) InsertCounter(ctx context.Context, rec models.CounterRecord) error {
	doc := bson.M{
		"table_name":      rec.TableName,
		"photo_id":        rec.PhotoID,
		"table_image_iid": rec.Key(),
		"click_count":     rec.ClickCount,
		"view_count":      rec.ViewCount,
		"updated_at":      rec.UpdatedAt,
	}
	_, err := s.counters.InsertOne(ctx, doc)
	return err
}

func (s *Store) UpdateCounter(ctx context.Context, rec models.CounterRecord) error {
	filter := bson.M{"table_name": rec.TableName, "photo_id": rec.PhotoID}
	update := bson.M{"$set": bson.M{
		"click_count": rec.ClickCount,
		"view_count":  rec.ViewCount,
		"updated_at":  rec.UpdatedAt,
	}}
	res, err := s.counters.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", database.ErrNotFound, rec.Key())
	}
	return nil
}

// DropAllCollections 删除所有集合，仅用于测试环境。
func (s *Store) DropAllCollections(ctx context.Context) error {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("删除集合 %s 失败: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
