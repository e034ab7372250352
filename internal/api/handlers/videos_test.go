package handlers_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadVideo(t *testing.T, ts *testutil.TestServer, client *http.Client, fileName, contentType string, size int) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(make([]byte, size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ts.APIURL("/company/videos"), &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func TestVideoHandler_Upload(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name           string
		fileName       string
		contentType    string
		size           int
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "accepts video",
			fileName:       "welcome.mp4",
			contentType:    "video/mp4",
			size:           512,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "rejects non-video",
			fileName:       "notes.txt",
			contentType:    "text/plain; charset=utf-8",
			size:           16,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_input",
		},
		{
			name:           "rejects upload beyond quota",
			fileName:       "huge.mp4",
			contentType:    "video/mp4",
			size:           4096,
			expectedStatus: http.StatusForbidden,
			expectedCode:   "quota_exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.DB.Truncate(t)
			company, owner, password := testutil.SeedCompany(t, ts.DB.DB, 5, 2048)
			client := ts.NewClient(t)
			testutil.LoginAndSelect(t, ts, client, owner.Email, password, company)

			resp := uploadVideo(t, ts, client, tt.fileName, tt.contentType, tt.size)
			defer resp.Body.Close()

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
				return
			}

			var video domain.Video
			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			testutil.AssertJSONResponse(t, resp, &video)
			assert.Equal(t, tt.fileName, video.FileName)
			assert.Equal(t, int64(tt.size), video.FileSize)
			assert.Equal(t, company.ID, video.CompanyID)
		})
	}
}

func TestVideoHandler_CrossCompany(t *testing.T) {
	ts := testutil.NewTestServer(t)

	acme, acmeOwner, _ := testutil.SeedCompany(t, ts.DB.DB, 5, 1<<20)
	globex, globexOwner, globexPassword := testutil.SeedCompany(t, ts.DB.DB, 5, 1<<20)
	video := testutil.AddVideo(t, ts.DB.DB, acme, acmeOwner, 100)

	client := ts.NewClient(t)
	testutil.LoginAndSelect(t, ts, client, globexOwner.Email, globexPassword, globex)

	for _, path := range []string{
		"/company/videos/" + video.ID.String(),
		"/company/videos/" + video.ID.String() + "/url",
	} {
		resp, err := client.Get(ts.APIURL(path))
		require.NoError(t, err)
		testutil.AssertErrorResponse(t, resp, http.StatusForbidden, "forbidden")
		resp.Body.Close()
	}

	resp, err := client.Get(ts.APIURL("/company/videos"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var videos []domain.Video
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &videos)
	assert.Empty(t, videos)
}

func TestVideoHandler_DeactivateAndDownload(t *testing.T) {
	ts := testutil.NewTestServer(t)

	company, owner, password := testutil.SeedCompany(t, ts.DB.DB, 5, 1<<20)
	client := ts.NewClient(t)
	testutil.LoginAndSelect(t, ts, client, owner.Email, password, company)

	resp := uploadVideo(t, ts, client, "demo.mp4", "video/mp4", 256)
	var video domain.Video
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	testutil.AssertJSONResponse(t, resp, &video)
	resp.Body.Close()

	resp, err := client.Get(ts.APIURL("/company/videos/" + video.ID.String() + "/url"))
	require.NoError(t, err)
	var signed map[string]string
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.AssertJSONResponse(t, resp, &signed)
	resp.Body.Close()
	assert.NotEmpty(t, signed["url"])

	resp = testutil.DoJSON(t, client, http.MethodDelete, ts.APIURL("/company/videos/"+video.ID.String()), nil)
	testutil.AssertStatusCode(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp, err = client.Get(ts.APIURL("/company/videos/" + video.ID.String() + "/url"))
	require.NoError(t, err)
	defer resp.Body.Close()
	testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "not_found")
}
