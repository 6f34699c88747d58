package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntities() []Entity {
	return []Entity{
		{ID: "r1", Kind: KindRestaurant, Name: "Biryani House", Cuisine: "Indian", Address: "12 Curry Lane", Rating: 4.5},
		{ID: "m1", Kind: KindMenuItem, Name: "Chicken Biryani", RestaurantID: "r1", Price: 12.5, Fields: []string{"Chicken Biryani", "biryani"}},
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"restaurant", KindRestaurant, false},
		{" Restaurants ", KindRestaurant, false},
		{"menu_item", KindMenuItem, false},
		{"dish", KindMenuItem, false},
		{"drink", KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchableFields(t *testing.T) {
	e := Entity{Name: "Pizza Corner", Cuisine: " ", Address: "1 Main St"}
	assert.Equal(t, []string{"Pizza Corner", "1 Main St"}, e.SearchableFields())

	e.Fields = []string{"Corner Pizza", ""}
	assert.Equal(t, []string{"Corner Pizza"}, e.SearchableFields())
}

func TestPriceBucket(t *testing.T) {
	tests := []struct {
		price float64
		want  int
	}{
		{0, 1}, {9.99, 1}, {10, 2}, {24.99, 2}, {25, 3}, {49.99, 3}, {50, 4}, {500, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceBucket(tt.price), "price %v", tt.price)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sampleEntities()))
	require.NoError(t, Validate(nil))

	// the same id in two kinds is fine
	require.NoError(t, Validate([]Entity{
		{ID: "1", Kind: KindRestaurant},
		{ID: "1", Kind: KindMenuItem, RestaurantID: "1"},
	}))

	tests := []struct {
		name     string
		entities []Entity
		want     error
	}{
		{"empty id", []Entity{{ID: " ", Kind: KindRestaurant}}, ErrInvalidEntity},
		{"unknown kind", []Entity{{ID: "x"}}, ErrUnknownKind},
		{"orphan item", []Entity{{ID: "x", Kind: KindMenuItem}}, ErrInvalidEntity},
		{"duplicate", []Entity{{ID: "x", Kind: KindRestaurant}, {ID: "x", Kind: KindRestaurant}}, ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.entities), tt.want)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want FileFormat
	}{
		{"catalog.yaml", FormatYAML},
		{"catalog.YML", FormatYAML},
		{"catalog.toml", FormatTOML},
		{"catalog.msgpack", FormatMsgpack},
		{"catalog.mpk", FormatMsgpack},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := DetectFormat("catalog.csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = NewFileSource("catalog.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFiles_AllFormats(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml", ".msgpack"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog"+ext)
			require.NoError(t, WriteFile(path, sampleEntities()))

			got, err := ReadFile(path)
			require.NoError(t, err)
			require.Len(t, got, 2)

			want := sampleEntities()
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].Kind, got[i].Kind)
				assert.Equal(t, want[i].Name, got[i].Name)
				assert.Equal(t, want[i].Rating, got[i].Rating)
				assert.Equal(t, want[i].Price, got[i].Price)
				assert.Equal(t, want[i].RestaurantID, got[i].RestaurantID)
				assert.Equal(t, want[i].SearchableFields(), got[i].SearchableFields())
				assert.IsType(t, &Record{}, got[i].Owner)
			}
		})
	}
}

func TestDecode_HandWrittenYAML(t *testing.T) {
	doc := `
entities:
  - id: r1
    kind: restaurant
    name: Pizza Corner
    cuisine: Italian
    rating: 4
  - id: m1
    kind: dish
    name: Calzone
    restaurant_id: r1
    price: 13
`
	got, err := Decode(bytes.NewBufferString(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, KindMenuItem, got[1].Kind)
	assert.Equal(t, 4.0, got[0].Rating)

	_, err = Decode(bytes.NewBufferString("entities:\n  - id: x\n    kind: spaceship\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, IsDataError(err))

	_, err = Decode(bytes.NewBufferString("entities: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Decode(bytes.NewBufferString("entities = ["), FormatTOML)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Decode(bytes.NewReader([]byte{0xc1}), FormatMsgpack)
	assert.ErrorIs(t, err, ErrMalformed)

	got, err = Decode(bytes.NewBufferString(""), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsDataError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrMalformed, true},
		{ErrInvalidEntity, true},
		{ErrUnknownKind, true},
		{ErrDuplicateID, true},
		{os.ErrNotExist, false},
		{context.Canceled, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDataError(tt.err), "%v", tt.err)
	}

	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.False(t, IsDataError(err))
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(sampleEntities())
	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got[0].Name = "mutated"
	again, _ := src.Load(context.Background())
	assert.Equal(t, "Biryani House", again[0].Name)

	src.Set(nil)
	again, _ = src.Load(context.Background())
	assert.Empty(t, again)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, WriteFile(path, sampleEntities()))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 100*time.Millisecond, func() { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, WriteFile(path, sampleEntities()))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst of writes should fire once")

	cancel()
	require.NoError(t, <-done)
}
