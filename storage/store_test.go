package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/stretchr/testify/require"
)

func testRecordStore(t *testing.T, store interfaces.RecordStore) {
	t.Helper()
	ctx := context.Background()
	addr := interfaces.Address{9, 8, 7}

	require.True(t, store.Available(ctx))

	_, err := store.Load(ctx, addr)
	require.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	require.NoError(t, store.Save(ctx, addr, []byte{1, 2, 3}))
	data, err := store.Load(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, store.Save(ctx, addr, []byte{4}))
	data, err = store.Load(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, []byte{4}, data)
}

func TestFactoryStores(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		uri  string
	}{
		{name: "memory", uri: "memory://"},
		{name: "file", uri: "file://" + filepath.Join(dir, "records")},
		{name: "sqlite", uri: "sqlite://" + filepath.Join(dir, "vault.db")},
		{name: "sqlite in memory", uri: "sqlite:///:memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewStoreFactory(discardLogger())
			defer factory.Close()

			location, err := interfaces.NewStorageBackendLocation(tt.uri)
			require.NoError(t, err)

			store, err := factory.StoreFor(context.Background(), location)
			require.NoError(t, err)
			testRecordStore(t, store)
		})
	}
}

func TestFactorySharesDatabases(t *testing.T) {
	factory := NewStoreFactory(discardLogger())
	defer factory.Close()

	path := filepath.Join(t.TempDir(), "vault.db")
	a, err := factory.Database(path)
	require.NoError(t, err)
	b, err := factory.Database(path)
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Len(t, factory.Databases(), 1)
}

func TestFactoryRejectsUnknownScheme(t *testing.T) {
	_, err := interfaces.NewStorageBackendLocation("github://owner/repo")
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestCreateMultiStore(t *testing.T) {
	factory := NewStoreFactory(discardLogger())
	defer factory.Close()

	var locations []interfaces.StorageBackendLocation
	for _, uri := range []string{"memory://", "file://" + t.TempDir()} {
		location, err := interfaces.NewStorageBackendLocation(uri)
		require.NoError(t, err)
		locations = append(locations, location)
	}

	store, err := factory.CreateMultiStore(context.Background(), locations)
	require.NoError(t, err)
	require.IsType(t, &MultiStore{}, store)
	testRecordStore(t, store)
}

// fakeS3 keeps objects in a map.
type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucketWithContext(ctx aws.Context, in *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	store := newS3Store(fake, "bucket", "/prefix/", "s3://bucket/prefix", discardLogger())
	testRecordStore(t, store)

	addr := interfaces.Address{9, 8, 7}
	require.Contains(t, fake.objects, "prefix/vaults/"+addr.String())
}

func TestLocationParsing(t *testing.T) {
	location, err := interfaces.NewStorageBackendLocation("s3://AK:SK@bucket/prefix?region=eu-west-1")
	require.NoError(t, err)
	require.Equal(t, "bucket", location.Host)
	require.Equal(t, "eu-west-1", location.GetParam("region"))
	require.Equal(t, "AK:SK", location.Auth)

	_, err = url.Parse(location.String())
	require.NoError(t, err)
}
