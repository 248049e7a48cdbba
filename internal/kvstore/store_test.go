package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finance-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	s, err := New(filepath.Join(suite.T().TempDir(), "test.bolt"))
	require.NoError(suite.T(), err, "failed to open store")
	suite.store = s
	suite.ctx = context.Background()

	_, err = suite.store.CreateUser(suite.ctx, "alice", "hash")
	require.NoError(suite.T(), err)
}

func (suite *StoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreTestSuite) TestUsers() {
	u, err := suite.store.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hash", u.PasswordHash)
	assert.Equal(suite.T(), int64(1), u.ID)

	_, err = suite.store.CreateUser(suite.ctx, "alice", "other")
	assert.ErrorIs(suite.T(), err, models.ErrUserExists)

	_, err = suite.store.GetUserByUsername(suite.ctx, "bob")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	n, err := suite.store.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, n)
}

func (suite *StoreTestSuite) TestLedgerRoundTrip() {
	l, err := suite.store.GetLedger(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), l.Categories)

	l.SetBudget("food", 50)
	require.NoError(suite.T(), suite.store.SaveLedger(suite.ctx, l))

	got, err := suite.store.GetLedger(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 50.0, got.Categories["food"])

	_, err = suite.store.GetLedger(suite.ctx, "bob")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *StoreTestSuite) TestRecordAndListTransactions() {
	l, err := suite.store.GetLedger(suite.ctx, "alice")
	require.NoError(suite.T(), err)

	base := time.Now()
	for i, id := range []string{"b", "c", "a"} {
		t := &models.Transaction{
			ID: id, Username: "alice", Description: id, Amount: 2,
			Type: models.Expense, Category: "food", Date: base.Add(time.Duration(i) * time.Minute),
		}
		if id == "a" {
			t.Date = base.Add(-time.Hour)
		}
		l.Apply(t.Category, t.Type, t.Amount)
		require.NoError(suite.T(), suite.store.RecordTransaction(suite.ctx, t, l))
	}

	list, err := suite.store.ListTransactions(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 3)
	assert.Equal(suite.T(), "c", list[0].ID)
	assert.Equal(suite.T(), "b", list[1].ID)
	assert.Equal(suite.T(), "a", list[2].ID)

	got, err := suite.store.GetLedger(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 6.0, got.TotalExpense)
	assert.Equal(suite.T(), -6.0, got.Categories["food"])
}

func (suite *StoreTestSuite) TestRecordTransactionRollsBack() {
	l, err := suite.store.GetLedger(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	l.Username = "ghost"

	t := &models.Transaction{
		ID: "x", Username: "alice", Description: "x", Amount: 1,
		Type: models.Income, Category: "pay", Date: time.Now(),
	}
	require.ErrorIs(suite.T(), suite.store.RecordTransaction(suite.ctx, t, l), models.ErrNotFound)

	list, err := suite.store.ListTransactions(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *StoreTestSuite) TestProfiles() {
	_, err := suite.store.GetProfile(suite.ctx, "alice")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	pic := "https://example.com/a.png"
	p, err := suite.store.UpdateProfile(suite.ctx, "alice", models.ProfileUpdate{ProfilePic: &pic})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", p.Username)

	name := "Alice"
	p, err = suite.store.UpdateProfile(suite.ctx, "alice", models.ProfileUpdate{Name: &name})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), pic, p.ProfilePic)
	assert.Equal(suite.T(), "Alice", p.Name)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
