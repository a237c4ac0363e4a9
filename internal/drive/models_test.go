package drive

import "testing"

func TestParseUploadStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    UploadStatus
		wantErr bool
	}{
		{in: "NOT_UPLOADED", want: NotUploaded},
		{in: "uploaded", want: Uploaded},
		{in: "Duplicate", want: Duplicate},
		{in: "FAILED", want: Failed},
		{in: "UPLOADING", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUploadStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUploadStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseUploadStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestUploadStatus_Persistable(t *testing.T) {
	for _, s := range []UploadStatus{NotUploaded, Uploaded, Duplicate, Failed} {
		if !s.Persistable() {
			t.Errorf("%v.Persistable() = false", s)
		}
	}
	if Uploading.Persistable() {
		t.Error("UPLOADING.Persistable() = true")
	}
}
