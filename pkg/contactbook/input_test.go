package contactbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
)

func methods(m ...MethodInput) *[]MethodInput { return &m }

func detailsOf(t *testing.T, err error) []apperror.FieldError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	require.Equal(t, apperror.KindInvalidInput, appErr.Kind)
	return appErr.Details
}

func TestValidateRequiresName(t *testing.T) {
	details := detailsOf(t, Input{Name: "   "}.Normalize().Validate())
	assert.Equal(t, "name", details[0].Field)
}

func TestValidateRejectsTwoPrimariesOfSameType(t *testing.T) {
	in := Input{
		Name: "Jane",
		ContactMethods: methods(
			MethodInput{Type: "email", Value: "a@example.com", IsPrimary: true},
			MethodInput{Type: "email", Value: "b@example.com", IsPrimary: true},
			MethodInput{Type: "phone", Value: "+1 555 0100", IsPrimary: true},
		),
	}
	details := detailsOf(t, in.Normalize().Validate())
	require.Len(t, details, 1)
	assert.Equal(t, "contactMethods", details[0].Field)
	assert.Contains(t, details[0].Message, "primary email")
}

func TestValidateAllowsOnePrimaryPerType(t *testing.T) {
	in := Input{
		Name: "Jane",
		ContactMethods: methods(
			MethodInput{Type: "email", Value: "a@example.com", IsPrimary: true},
			MethodInput{Type: "email", Value: "b@example.com"},
			MethodInput{Type: "phone", Value: "+1 555 0100", IsPrimary: true},
		),
	}
	assert.NoError(t, in.Normalize().Validate())
}

func TestValidateChecksEmailTypedValuesAndTypes(t *testing.T) {
	in := Input{
		Name: "Jane",
		ContactMethods: methods(
			MethodInput{Type: "email", Value: "not-an-email"},
		),
	}
	details := detailsOf(t, in.Normalize().Validate())
	assert.Equal(t, "contactMethods[0].value", details[0].Field)

	in.ContactMethods = methods(MethodInput{Type: "fax", Value: "123"})
	details = detailsOf(t, in.Normalize().Validate())
	assert.Equal(t, "contactMethods[0].type", details[0].Field)
}

func TestValidateRejectsBadURLsAndDates(t *testing.T) {
	links := []SocialLinkInput{{Platform: "LinkedIn", URL: "not a url"}}
	convs := []ConversationInput{{Date: "2024/01/01", Summary: "intro"}}
	in := Input{Name: "Jane", WebsiteURL: "example", SocialLinks: &links, Conversations: &convs}

	details := detailsOf(t, in.Normalize().Validate())
	fields := make([]string, 0, len(details))
	for _, d := range details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"conversations[0].date", "socialLinks[0].url", "website"}, fields)
}

func TestNormalizeTagsAndPlatforms(t *testing.T) {
	links := []SocialLinkInput{{Platform: " GitHub ", URL: "https://github.com/jane"}}
	in := Input{Name: " Jane ", Tags: []string{" vip", "vip", "", "investor "}, SocialLinks: &links}.Normalize()

	assert.Equal(t, "Jane", in.Name)
	assert.Equal(t, []string{"vip", "investor"}, in.Tags)
	assert.Equal(t, "github", (*in.SocialLinks)[0].Platform)
	assert.Equal(t, []string{}, NormalizeTags(nil))
}

func TestChildBuildersKeepNilDistinctFromEmpty(t *testing.T) {
	assert.Nil(t, Input{}.methods(1))

	empty := []MethodInput{}
	assert.Equal(t, []model.ContactMethod{}, Input{ContactMethods: &empty}.methods(1))

	transcript := "hello"
	convs := []ConversationInput{{Date: "2024-03-09", Summary: "s", Transcript: &transcript}}
	got := Input{Conversations: &convs}.conversations(9)
	require.Len(t, got, 1)
	assert.Equal(t, uint(9), got[0].ContactID)
	assert.Equal(t, "2024-03-09", got[0].DateString())
	assert.Equal(t, time.March, time.Time(got[0].Date).Month())
}
