package mongo_storage

import (
	"context"
	"time"

	"github.com/magiconair/properties"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/pingcap/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// mongodb properties
const (
	mongodbURL            = "mongodb.url"
	mongodbDatabase       = "mongodb.database"
	mongodbCollection     = "mongodb.collection"
	mongodbConnectTimeout = "mongodb.connect_timeout"

	mongodbURLDefault = "mongodb://127.0.0.1:27017/?replicaSet=rs0"
)

func init() {
	storage.Register("mongodb", mongodbCreator{})
}

type mongodbCreator struct{}

func (mongodbCreator) Create(p *properties.Properties) (storage.Storage, error) {
	return &MongoStorage{
		uri:            p.GetString(mongodbURL, mongodbURLDefault),
		database:       p.GetString(mongodbDatabase, "tinyledger"),
		collection:     p.GetString(mongodbCollection, "accounts"),
		connectTimeout: p.GetParsedDuration(mongodbConnectTimeout, 10*time.Second),
	}, nil
}

// MongoStorage keeps one document per account. A commit runs inside a multi-document transaction, which needs the
// server to be a replica set member.
type MongoStorage struct {
	uri            string
	database       string
	collection     string
	connectTimeout time.Duration

	cli  *mongo.Client
	coll *mongo.Collection
}

func (s *MongoStorage) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		cli.Disconnect(context.Background())
		return errors.WithStack(err)
	}
	s.cli = cli
	s.coll = cli.Database(s.database).Collection(s.collection)
	log.Info("mongodb storage connected", zap.String("database", s.database), zap.String("collection", s.collection))
	return nil
}

func (s *MongoStorage) Stop() error {
	if s.cli == nil {
		return nil
	}
	err := s.cli.Disconnect(context.Background())
	s.cli = nil
	return errors.WithStack(err)
}

func (s *MongoStorage) Commit(ctx context.Context, rows []storage.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := s.cli.StartSession()
	if err != nil {
		return errors.WithStack(err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, row := range rows {
			_, err := s.coll.ReplaceOne(sc, bson.M{"_id": int64(row.ID)}, row, options.Replace().SetUpsert(true))
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return errors.WithStack(err)
}

func (s *MongoStorage) Load(ctx context.Context) ([]storage.Account, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer cursor.Close(ctx)
	var rows []storage.Account
	for cursor.Next(ctx) {
		var acc storage.Account
		if err := cursor.Decode(&acc); err != nil {
			return nil, errors.WithStack(err)
		}
		rows = append(rows, acc)
	}
	return rows, errors.WithStack(cursor.Err())
}
