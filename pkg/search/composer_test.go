package search

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"contactbook_backend/internal/model"
	"contactbook_backend/internal/testutil"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
)

func renderScope(t *testing.T, userID uint, f Filter) (string, []interface{}) {
	t.Helper()
	var contacts []model.Contact
	stmt := Scope(testutil.DryRun(t), userID, f).Find(&contacts).Statement
	return stmt.SQL.String(), stmt.Vars
}

func TestScopeAlwaysRestrictsToOwner(t *testing.T) {
	sql, vars := renderScope(t, 7, Filter{})
	assert.Contains(t, sql, "contacts.user_id = $1")
	assert.NotContains(t, sql, "EXISTS")
	assert.Equal(t, []interface{}{uint(7)}, vars)
}

func TestScopeComposesEveryFilter(t *testing.T) {
	sql, vars := renderScope(t, 3, Filter{
		Email:            "jane@example.com",
		Name:             "50%_off",
		LinkedinURL:      "https://www.linkedin.com/in/jane",
		Tags:             []string{"vip", "investor"},
		TranscriptText:   "Budget",
		DateFrom:         "2024-01-01",
		DateTo:           "2024-01-31",
		ConversationDate: "2024-01-15",
	})

	assert.Contains(t, sql, "cm.type = $2 AND cm.value = $3")
	assert.Contains(t, sql, "contacts.name ILIKE $4")
	assert.Contains(t, sql, "sl.platform = $5 AND sl.url = $6")
	assert.Contains(t, sql, "contacts.tags @> $7::text[]")
	assert.Contains(t, sql, "strpos(cv.transcript, $8) > 0")
	assert.Contains(t, sql, "cv.date >= $9::date AND cv.date <= $10::date")
	assert.Contains(t, sql, "cv.date = $11::date")

	require.Len(t, vars, 11)
	assert.Equal(t, model.ContactMethodEmail, vars[1])
	assert.Equal(t, "jane@example.com", vars[2])
	assert.Equal(t, `%50\%\_off%`, vars[3])
	assert.Equal(t, "linkedin", vars[4])
	assert.Equal(t, pq.StringArray{"vip", "investor"}, vars[6])
	assert.Equal(t, "Budget", vars[7])
}

func TestScopeKeywordSpansContactAndConversationFields(t *testing.T) {
	sql, vars := renderScope(t, 1, Filter{Keyword: "design"})

	assert.Contains(t, sql, "contacts.name ILIKE")
	assert.Contains(t, sql, "contacts.about ILIKE")
	assert.Contains(t, sql, "contacts.job_title ILIKE")
	assert.Contains(t, sql, "cv.summary ILIKE")
	assert.Contains(t, sql, "cv.transcript ILIKE")
	for _, v := range vars[1:] {
		assert.Equal(t, "%design%", v)
	}
}

func TestScopeSingleDateBound(t *testing.T) {
	sql, _ := renderScope(t, 1, Filter{DateTo: "2024-01-31"})
	assert.Contains(t, sql, "cv.contact_id = contacts.id AND cv.date <= $2::date")
	assert.NotContains(t, sql, ">=")
}

func TestSearchRejectsInvalidFilterBeforeQuerying(t *testing.T) {
	composer := NewComposer(testutil.DryRun(t), logger.Nop())
	_, err := composer.Search(context.Background(), 1, Filter{Email: "nope"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidInput))
}

func day(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func seedContact(t *testing.T, db *gorm.DB, c model.Contact) model.Contact {
	t.Helper()
	require.NoError(t, db.Create(&c).Error)
	return c
}

func TestSearchAgainstPostgres(t *testing.T) {
	db := testutil.Tx(t, testutil.DB(t))
	owner := testutil.CreateUser(t, db, "owner")
	other := testutil.CreateUser(t, db, "other")

	jane := seedContact(t, db, model.Contact{
		UserID: owner.ID,
		Name:   "Jane Doe",
		About:  "Leads design systems at Acme",
		Tags:   pq.StringArray{"vip", "investor", "founder"},
		ContactMethods: []model.ContactMethod{
			{Type: model.ContactMethodEmail, Value: "jane@acme.io", IsPrimary: true},
		},
		SocialLinks: []model.SocialLink{
			{Platform: "linkedin", URL: "https://www.linkedin.com/in/janedoe"},
		},
		Conversations: []model.Conversation{
			{Date: day(2024, 3, 1), Summary: "Intro", Transcript: strPtr("Talked about Design reviews.")},
			{Date: day(2024, 4, 10), Summary: "Pricing"},
		},
	})
	seedContact(t, db, model.Contact{
		UserID: owner.ID,
		Name:   "Bob Stone",
		Tags:   pq.StringArray{"vip"},
		Conversations: []model.Conversation{
			{Date: day(2024, 5, 5), Summary: "Budget call", Transcript: strPtr("budget for Q3")},
		},
	})
	seedContact(t, db, model.Contact{UserID: other.ID, Name: "Jane Elsewhere", Tags: pq.StringArray{"vip", "investor"}})

	composer := NewComposer(db, logger.Nop())
	ctx := context.Background()

	t.Run("empty filter returns all own contacts", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("name is case-insensitive substring", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{Name: "JANE"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, jane.ID, got[0].ID)
	})

	t.Run("tags superset", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{Tags: []string{"investor", "vip"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, jane.ID, got[0].ID)
	})

	t.Run("keyword matches and annotates", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{Keyword: "design"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		for _, conv := range got[0].Conversations {
			require.NotNil(t, conv.MatchCount)
			if conv.Summary == "Intro" {
				assert.GreaterOrEqual(t, *conv.MatchCount, 1)
			} else {
				assert.Equal(t, 0, *conv.MatchCount)
			}
		}
	})

	t.Run("email and linkedin exact", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{Email: "jane@acme.io", LinkedinURL: "https://www.linkedin.com/in/janedoe"})
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = composer.Search(ctx, owner.ID, Filter{Email: "JANE@acme.io"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("transcript text is a case-sensitive substring", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{TranscriptText: "budget"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Bob Stone", got[0].Name)
	})

	t.Run("date range and exact date", func(t *testing.T) {
		got, err := composer.Search(ctx, owner.ID, Filter{DateFrom: "2024-04-01", DateTo: "2024-04-30"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, jane.ID, got[0].ID)

		got, err = composer.Search(ctx, owner.ID, Filter{ConversationDate: "2024-05-05"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Bob Stone", got[0].Name)
	})
}
