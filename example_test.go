package ftptransport_test

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gonzalop/ftptransport"
	"github.com/gonzalop/ftptransport/internal/ftptest"
)

func ExampleAdapter_Send() {
	srv, err := ftptest.Start("127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Close()
	_ = srv.FS().WriteFile("/pub/hello.txt", []byte("hello, world\n"))

	a, err := ftptransport.New()
	if err != nil {
		log.Fatal(err)
	}

	req := ftptransport.NewRequest(ftptransport.MethodRetrieve, "ftp://"+srv.Addr()+"/pub/hello.txt", nil)
	resp, err := a.Send(req)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.StatusCode)
	fmt.Print(resp.Text())
	// Output:
	// 226
	// hello, world
}

func ExampleAdapter_Send_store() {
	srv, err := ftptest.Start("127.0.0.1:0", ftptest.WithUser("alice", "s3cret"))
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Close()
	_ = srv.FS().MkdirAll("/uploads")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "report.csv")
	_, _ = fw.Write([]byte("id,total\n1,42\n"))
	_ = mw.Close()

	req := ftptransport.NewRequest(ftptransport.MethodStore, "ftp://"+srv.Addr()+"/uploads/report.csv", body.Bytes())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("alice", "s3cret")

	a, _ := ftptransport.New()
	resp, err := a.Send(req)
	if err != nil {
		log.Fatal(err)
	}

	stored, _ := srv.FS().ReadFile("/uploads/report.csv")
	fmt.Println(resp.StatusCode, resp.Body.Len())
	fmt.Print(string(stored))
	// Output:
	// 226 0
	// id,total
	// 1,42
}

func ExampleAdapter_Send_missingFile() {
	srv, err := ftptest.Start("127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Close()

	a, _ := ftptransport.New()
	resp, err := a.Send(ftptransport.NewRequest(ftptransport.MethodRetrieve, "ftp://"+srv.Addr()+"/missing", nil))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Reply)
	// Output:
	// 550 File not found.
}

func ExampleAdapter_RoundTrip() {
	srv, err := ftptest.Start("127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Close()
	_ = srv.FS().WriteFile("/pub/a.txt", nil)
	_ = srv.FS().WriteFile("/pub/b.txt", nil)

	a, _ := ftptransport.New()
	t := &http.Transport{}
	t.RegisterProtocol("ftp", a)
	client := &http.Client{Transport: t}

	req, _ := http.NewRequest(ftptransport.MethodNameList, "ftp://"+srv.Addr()+"/pub", nil)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	names, _ := io.ReadAll(resp.Body)
	fmt.Println(resp.Status)
	fmt.Print(string(bytes.ReplaceAll(names, []byte("\r\n"), []byte("\n"))))
	// Output:
	// 226 Transfer complete.
	// a.txt
	// b.txt
}
