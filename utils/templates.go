package utils

import (
	"fmt"
	"io"
	"sync"

	"github.com/CloudyKit/jet/v6"
)

const capabilitiesTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Capabilities service="focal" version="1.0.0">
  <ServiceIdentification>
    <Title>Focal statistics service</Title>
    <Endpoint>http://{{ .Hostname }}/ows{{ if .NameSpace != "" }}/{{ .NameSpace }}{{ end }}</Endpoint>
  </ServiceIdentification>
  <Operations>
    <Operation name="GetCapabilities"/>
    <Operation name="DescribeProcess"/>
    <Operation name="Execute"/>
  </Operations>
  <ProcessOfferings>
{{ range i, p := .Processes }}
    <Process>
      <Identifier>{{ p.Identifier }}</Identifier>
      <Title>{{ p.Title }}</Title>
      <Abstract>{{ p.Abstract }}</Abstract>
    </Process>
{{ end }}
  </ProcessOfferings>
</Capabilities>
`

const describeTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<ProcessDescription>
  <Identifier>{{ .Process.Identifier }}</Identifier>
  <Title>{{ .Process.Title }}</Title>
  <Abstract>{{ .Process.Abstract }}</Abstract>
  <DataInputs>
    <Input name="input" type="string" required="true"/>
    <Input name="band" type="integer" default="{{ .Process.Band }}"/>
    <Input name="size" type="integer" default="{{ .Process.WindowSize }}" max="{{ .MaxWindowSize }}"/>
    <Input name="statistic" type="string" default="{{ .Process.Statistic }}">
{{ range i, s := .Statistics }}
      <AllowedValue>{{ s }}</AllowedValue>
{{ end }}
    </Input>
    <Input name="boundary" type="string" default="{{ .Process.Boundary }}">
{{ range i, b := .Boundaries }}
      <AllowedValue>{{ b }}</AllowedValue>
{{ end }}
    </Input>
    <Input name="format" type="string" default="asc">
      <AllowedValue>asc</AllowedValue>
      <AllowedValue>png</AllowedValue>
      <AllowedValue>json</AllowedValue>
    </Input>
  </DataInputs>
</ProcessDescription>
`

type CapabilitiesData struct {
	Hostname  string
	NameSpace string
	Processes []Process
}

type DescribeData struct {
	Process       Process
	MaxWindowSize int
	Statistics    []string
	Boundaries    []string
}

var (
	viewsOnce sync.Once
	views     *jet.Set
)

func templateSet() *jet.Set {
	viewsOnce.Do(func() {
		loader := jet.NewInMemLoader()
		loader.Set("/capabilities.xml.jet", capabilitiesTemplate)
		loader.Set("/describe.xml.jet", describeTemplate)
		views = jet.NewSet(loader)
	})
	return views
}

func executeTemplate(w io.Writer, name string, data interface{}) error {
	tpl, err := templateSet().GetTemplate(name)
	if err != nil {
		return fmt.Errorf("Error trying to parse template document: %v", err)
	}
	vars := make(jet.VarMap)
	if err = tpl.Execute(w, vars, data); err != nil {
		return fmt.Errorf("Error executing template: %v", err)
	}
	return nil
}

func ExecuteCapabilities(w io.Writer, data *CapabilitiesData) error {
	return executeTemplate(w, "/capabilities.xml.jet", data)
}

func ExecuteDescribeProcess(w io.Writer, data *DescribeData) error {
	return executeTemplate(w, "/describe.xml.jet", data)
}
