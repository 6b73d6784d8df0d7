package supabase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glenn-svanberg-backend/internal/apperr"
	"glenn-svanberg-backend/internal/supabase"
)

func TestNewStorageClient_RequiresCredentials(t *testing.T) {
	_, err := supabase.NewStorageClient("", "", "glennsvanberg")
	assert.Error(t, err)

	_, err = supabase.NewStorageClient("https://project.supabase.co", "", "glennsvanberg")
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://project.supabase.co/", "anon-key", "glennsvanberg")
	require.NoError(t, err)

	got := client.PublicURL("glenn_som_pirat_2025-06-01T12-00-00-000Z.jpg")

	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/glennsvanberg/glenn_som_pirat_2025-06-01T12-00-00-000Z.jpg",
		got)
}

func TestDefault_UnavailableWithoutCredentials(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	client := supabase.Default()

	_, err := client.List("", 10)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	err = client.Upload("glenn.jpg", []byte("data"), "image/jpeg")
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	assert.Empty(t, client.PublicURL("glenn.jpg"))
}
