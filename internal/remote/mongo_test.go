package remote

import (
	"errors"
	"testing"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMongoDocumentMapping(t *testing.T) {
	rec := models.Member{ID: "mem-1", Name: "Lee", Phone: "777"}.Record()

	doc := toDocument(rec, true)
	assert.Equal(t, "mem-1", doc["_id"])
	assert.NotContains(t, doc, "id")

	update := toDocument(rec, false)
	assert.NotContains(t, update, "_id")
	assert.Equal(t, "Lee", update["name"])

	back := fromDocument(bson.M{"_id": "mem-1", "name": "Lee", "phone": "777", "joined_at": ""})
	member, err := models.MemberFromRecord(back)
	assert.NoError(t, err)
	assert.Equal(t, "mem-1", member.ID)
}

func TestMongoErrorMapping(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mongoError(dup), domain.ErrDuplicateRecord)
	assert.ErrorIs(t, mongoError(mongo.ErrNoDocuments), domain.ErrRecordNotFound)
	assert.ErrorIs(t, mongoError(errors.New("socket closed")), domain.ErrStoreUnavailable)
	assert.NoError(t, mongoError(nil))
}
