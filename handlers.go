package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shakram02/go-sql-browser/data"
)

// DefaultBrowseLimit caps browse_table when no limit is given.
const DefaultBrowseLimit = 100

func (s *MCPServer) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	s.logger.Info("client initialized", "client", initParams.ClientInfo.Name, "version", initParams.ClientInfo.Version)

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
	}, nil
}

func tableProperty() Property {
	return Property{Type: "string", Description: "Table or view name"}
}

var readTools = []Tool{
	{
		Name:        "query",
		Description: "Execute a SQL query and return the rows as JSON. In read-only mode only SELECT, SHOW, DESCRIBE and EXPLAIN are allowed",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"sql": {Type: "string", Description: "The SQL query to execute"},
			},
			Required: []string{"sql"},
		},
	},
	{
		Name:        "list_tables",
		Description: "List the tables and views of the database",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        "list_procedures",
		Description: "List stored procedures and functions with their parameters",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        "describe_table",
		Description: "Describe the columns of a table or view",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{"table": tableProperty()},
			Required:   []string{"table"},
		},
	},
	{
		Name:        "browse_table",
		Description: "Read rows of a table or view with optional filtering, ordering and paging",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"table":      tableProperty(),
				"columns":    {Type: "array", Description: "Columns to return (default all)", Items: &Property{Type: "string"}},
				"filters":    {Type: "object", Description: "Column equality filters; null matches IS NULL"},
				"where":      {Type: "string", Description: "Additional raw WHERE condition"},
				"order_by":   {Type: "string", Description: "Column to order by"},
				"descending": {Type: "boolean", Description: "Order descending"},
				"limit":      {Type: "integer", Description: fmt.Sprintf("Maximum rows (default %d)", DefaultBrowseLimit)},
				"offset":     {Type: "integer", Description: "Rows to skip"},
			},
			Required: []string{"table"},
		},
	},
}

var writeTools = []Tool{
	{
		Name:        "execute",
		Description: "Execute a statement that modifies data or schema and return the number of rows affected",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"sql": {Type: "string", Description: "The SQL statement to execute"},
			},
			Required: []string{"sql"},
		},
	},
	{
		Name:        "insert_row",
		Description: "Insert a row into a table",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"table":  tableProperty(),
				"values": {Type: "object", Description: "Column values of the new row"},
			},
			Required: []string{"table", "values"},
		},
	},
	{
		Name:        "update_row",
		Description: "Update the row identified by its primary key",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"table":  tableProperty(),
				"key":    {Type: "object", Description: "Primary key values of the row"},
				"values": {Type: "object", Description: "Columns to change"},
			},
			Required: []string{"table", "key", "values"},
		},
	},
	{
		Name:        "delete_row",
		Description: "Delete the row identified by its primary key",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"table": tableProperty(),
				"key":   {Type: "object", Description: "Primary key values of the row"},
			},
			Required: []string{"table", "key"},
		},
	},
}

func (s *MCPServer) handleListTools() (*ListToolsResult, *Error) {
	var tools []Tool
	for _, tool := range readTools {
		if tool.Name == "list_procedures" && !s.db.SupportStoredProcedures() {
			continue
		}
		tools = append(tools, tool)
	}
	if !s.db.ReadOnly() {
		tools = append(tools, writeTools...)
	}
	return &ListToolsResult{Tools: tools}, nil
}

func isWriteTool(name string) bool {
	for _, tool := range writeTools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

func (s *MCPServer) handleCallTool(params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	if s.db.ReadOnly() && isWriteTool(callParams.Name) {
		return errorResult("Tool %s is disabled: the server is in read-only mode", callParams.Name), nil
	}

	args := callParams.Arguments
	switch callParams.Name {
	case "query":
		return s.executeQuery(args)
	case "execute":
		return s.executeStatement(args)
	case "list_tables":
		return s.listTables()
	case "list_procedures":
		return s.listProcedures()
	case "describe_table":
		return s.describeTable(args)
	case "browse_table":
		return s.browseTable(args)
	case "insert_row":
		return s.insertRow(args)
	case "update_row":
		return s.updateRow(args)
	case "delete_row":
		return s.deleteRow(args)
	default:
		return nil, &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
		}
	}
}

func (s *MCPServer) executeQuery(args map[string]any) (*CallToolResult, *Error) {
	sqlQuery, perr := stringArg(args, "sql")
	if perr != nil {
		return nil, perr
	}

	result, err := s.db.ExecuteTable(s.ctx, sqlQuery)
	if err != nil {
		return errorResult("Query error: %v", err), nil
	}
	return jsonResult(rowMaps(result))
}

func (s *MCPServer) executeStatement(args map[string]any) (*CallToolResult, *Error) {
	sqlQuery, perr := stringArg(args, "sql")
	if perr != nil {
		return nil, perr
	}

	n, err := s.db.ExecuteNonQuery(s.ctx, sqlQuery)
	if err != nil {
		return errorResult("Execution error: %v", err), nil
	}
	// The statement may have changed the schema.
	s.db.Refresh()
	return textResult("%d row(s) affected", n), nil
}

func (s *MCPServer) listTables() (*CallToolResult, *Error) {
	tables, err := s.db.Tables(s.ctx)
	if err != nil {
		return errorResult("%v", err), nil
	}

	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		info := TableInfo{Name: t.Name, Schema: t.Schema, Type: "table"}
		if t.IsView {
			info.Type = "view"
		}
		infos = append(infos, info)
	}
	return jsonResult(infos)
}

func (s *MCPServer) listProcedures() (*CallToolResult, *Error) {
	procs, err := s.db.StoredProcedures(s.ctx)
	if errors.Is(err, data.ErrNotSupported) {
		return errorResult("Stored procedures are not supported by %s", s.db.Provider().Name()), nil
	}
	if err != nil {
		return errorResult("%v", err), nil
	}

	infos := make([]ProcedureInfo, 0, len(procs))
	for _, p := range procs {
		params, err := p.Parameters(s.ctx)
		if err != nil {
			return errorResult("Failed to read parameters of %s: %v", p.Name, err), nil
		}
		if params == nil {
			params = []data.Parameter{}
		}
		infos = append(infos, ProcedureInfo{Name: p.Name, Type: p.Type, Parameters: params})
	}
	return jsonResult(infos)
}

func (s *MCPServer) describeTable(args map[string]any) (*CallToolResult, *Error) {
	t, result, perr := s.tableArg(args)
	if t == nil {
		return result, perr
	}

	cols, err := t.Columns(s.ctx)
	if err != nil {
		return errorResult("Failed to read columns of %s: %v", t.Name, err), nil
	}
	return jsonResult(cols)
}

func (s *MCPServer) browseTable(args map[string]any) (*CallToolResult, *Error) {
	t, result, perr := s.tableArg(args)
	if t == nil {
		return result, perr
	}

	filter := &data.TableFilter{Where: optionalString(args, "where")}
	var ok bool
	if filter.Columns, ok = stringsArg(args, "columns"); !ok {
		return nil, invalidParam("columns")
	}
	if filter.Limit, ok = intArg(args, "limit", DefaultBrowseLimit); !ok || filter.Limit < 0 {
		return nil, invalidParam("limit")
	}
	if filter.Offset, ok = intArg(args, "offset", 0); !ok || filter.Offset < 0 {
		return nil, invalidParam("offset")
	}
	if column := optionalString(args, "order_by"); column != "" {
		descending, _ := args["descending"].(bool)
		filter.OrderBy = []data.Order{{Column: column, Descending: descending}}
	}
	filters, ok := objectArg(args, "filters")
	if !ok {
		return nil, invalidParam("filters")
	}
	filter.Conditions = equalityConditions(filters)

	adapter, err := s.db.CreateAdapter(s.ctx, t, filter)
	if err != nil {
		return errorResult("%v", err), nil
	}
	if s.db.ReadOnly() {
		if err := s.db.Provider().ValidateQuery(adapter.SelectText); err != nil {
			return errorResult("Query rejected: %v", err), nil
		}
	}

	rows, err := adapter.Fill(s.ctx)
	if err != nil {
		return errorResult("Query error: %v", err), nil
	}
	return jsonResult(rowMaps(rows))
}

func (s *MCPServer) insertRow(args map[string]any) (*CallToolResult, *Error) {
	t, result, perr := s.tableArg(args)
	if t == nil {
		return result, perr
	}
	values, ok := objectArg(args, "values")
	if !ok || len(values) == 0 {
		return nil, invalidParam("values")
	}
	if err := s.checkColumns(t, values); err != nil {
		return errorResult("%v", err), nil
	}

	adapter, err := s.db.CreateAdapter(s.ctx, t, nil)
	if err != nil {
		return errorResult("%v", err), nil
	}
	if err := adapter.RestrictColumns(s.ctx, sortedKeys(values)...); err != nil {
		return errorResult("%v", err), nil
	}
	n, err := adapter.Update(s.ctx, data.RowChange{State: data.Added, Current: values})
	if err != nil {
		return errorResult("Insert failed: %v", err), nil
	}
	return textResult("%d row(s) inserted into %s", n, t.Name), nil
}

// updateRow sets only the given columns of the row whose primary key
// matches key.
func (s *MCPServer) updateRow(args map[string]any) (*CallToolResult, *Error) {
	t, result, perr := s.tableArg(args)
	if t == nil {
		return result, perr
	}
	key, ok := objectArg(args, "key")
	if !ok || len(key) == 0 {
		return nil, invalidParam("key")
	}
	values, ok := objectArg(args, "values")
	if !ok || len(values) == 0 {
		return nil, invalidParam("values")
	}
	if err := s.checkKey(t, key); err != nil {
		return errorResult("%v", err), nil
	}
	if err := s.checkColumns(t, values); err != nil {
		return errorResult("%v", err), nil
	}

	adapter, err := s.db.CreateAdapter(s.ctx, t, nil)
	if err != nil {
		return errorResult("%v", err), nil
	}
	if err := adapter.RestrictColumns(s.ctx, sortedKeys(values)...); err != nil {
		return errorResult("%v", err), nil
	}
	n, err := adapter.Update(s.ctx, data.RowChange{State: data.Modified, Original: key, Current: values})
	if err != nil {
		return errorResult("Update failed: %v", err), nil
	}
	return textResult("%d row(s) updated in %s", n, t.Name), nil
}

func (s *MCPServer) deleteRow(args map[string]any) (*CallToolResult, *Error) {
	t, result, perr := s.tableArg(args)
	if t == nil {
		return result, perr
	}
	key, ok := objectArg(args, "key")
	if !ok || len(key) == 0 {
		return nil, invalidParam("key")
	}
	if err := s.checkKey(t, key); err != nil {
		return errorResult("%v", err), nil
	}

	adapter, err := s.db.CreateAdapter(s.ctx, t, nil)
	if err != nil {
		return errorResult("%v", err), nil
	}
	n, err := adapter.Update(s.ctx, data.RowChange{State: data.Deleted, Original: key})
	if err != nil {
		return errorResult("Delete failed: %v", err), nil
	}
	return textResult("%d row(s) deleted from %s", n, t.Name), nil
}

// tableArg resolves the "table" argument. When the table is nil the
// returned result or error is the tool's response.
func (s *MCPServer) tableArg(args map[string]any) (*data.Table, *CallToolResult, *Error) {
	name, perr := stringArg(args, "table")
	if perr != nil {
		return nil, nil, perr
	}
	t, err := s.db.Table(s.ctx, name)
	if err != nil {
		return nil, errorResult("%v", err), nil
	}
	return t, nil, nil
}

func (s *MCPServer) checkColumns(t *data.Table, values map[string]any) error {
	cols, err := t.Columns(s.ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.Name] = true
	}
	for name := range values {
		if !known[name] {
			return fmt.Errorf("unknown column %q in %s", name, t.Name)
		}
	}
	return nil
}

func (s *MCPServer) checkKey(t *data.Table, key map[string]any) error {
	pk, err := t.PrimaryKey(s.ctx)
	if err != nil {
		return err
	}
	if len(pk) == 0 {
		return fmt.Errorf("%s: %w", t.Name, data.ErrNoPrimaryKey)
	}
	var missing []string
	for _, c := range pk {
		if _, ok := key[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("key of %s is missing columns: %s", t.Name, strings.Join(missing, ", "))
	}
	return s.checkColumns(t, key)
}

func (s *MCPServer) handleListResources() (*ListResourcesResult, *Error) {
	dbName, err := s.db.CurrentDatabase(s.ctx)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to get database name: %v", err),
		}
	}
	if dbName == "" {
		return &ListResourcesResult{Resources: []Resource{}}, nil
	}

	tables, err := s.db.Tables(s.ctx)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to list tables: %v", err),
		}
	}

	resources := make([]Resource, 0, len(tables))
	for _, t := range tables {
		kind := "table"
		if t.IsView {
			kind = "view"
		}
		resources = append(resources, Resource{
			URI:         fmt.Sprintf("%s://%s/%s/schema", s.db.Provider().Name(), dbName, t.Name),
			Name:        fmt.Sprintf("Schema for %s '%s'", kind, t.Name),
			Description: fmt.Sprintf("Column definitions of the %s %s", kind, t.Name),
			MimeType:    "application/json",
		})
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *MCPServer) handleReadResource(params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	// Parse URI: <provider>://dbname/tablename/schema
	uri := readParams.URI
	scheme := s.db.Provider().Name() + "://"
	if !strings.HasPrefix(uri, scheme) {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI: must start with %s", scheme),
		}
	}

	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")
	if len(parts) != 3 || parts[2] != "schema" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI format: expected %sdbname/tablename/schema", scheme),
		}
	}

	dbName, err := s.db.CurrentDatabase(s.ctx)
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to get database name: %v", err)}
	}
	if parts[0] != dbName {
		return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("Unknown database: %s", parts[0])}
	}

	t, err := s.db.Table(s.ctx, parts[1])
	if errors.Is(err, data.ErrTableNotFound) {
		return nil, &Error{Code: InvalidParams, Message: err.Error()}
	}
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to list tables: %v", err)}
	}

	cols, err := t.Columns(s.ctx)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to get schema: %v", err),
		}
	}

	schemaJSON, err := json.MarshalIndent(cols, "", "  ")
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to marshal schema: %v", err),
		}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{
			{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(schemaJSON),
			},
		},
	}, nil
}

// rowMaps converts a result to row objects, appending a warning entry when
// the result was truncated.
func rowMaps(t *data.DataTable) []map[string]any {
	rows := t.ToMaps()
	if t.Truncated {
		rows = append(rows, map[string]any{
			"_warning": fmt.Sprintf("Result truncated at %d rows", len(t.Rows)),
		})
	}
	return rows
}

func jsonResult(v any) (*CallToolResult, *Error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to marshal results: %v", err), nil
	}
	return &CallToolResult{Content: []Content{{Type: "text", Text: string(out)}}}, nil
}

func invalidParam(name string) *Error {
	return &Error{
		Code:    InvalidParams,
		Message: fmt.Sprintf("Missing or invalid '%s' parameter", name),
	}
}

func stringArg(args map[string]any, name string) (string, *Error) {
	v, ok := args[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", invalidParam(name)
	}
	return v, nil
}

func optionalString(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

// intArg reads a JSON number. Absent arguments yield def.
func intArg(args map[string]any, name string, def int) (int, bool) {
	v, present := args[name]
	if !present || v == nil {
		return def, true
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func stringsArg(args map[string]any, name string) ([]string, bool) {
	v, present := args[name]
	if !present || v == nil {
		return nil, true
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// objectArg reads a JSON object, converting whole numbers to int64 so
// they bind as integers.
func objectArg(args map[string]any, name string) (map[string]any, bool) {
	v, present := args[name]
	if !present || v == nil {
		return nil, true
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(obj))
	for k, val := range obj {
		if f, ok := val.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			val = int64(f)
		}
		out[k] = val
	}
	return out, true
}

// equalityConditions turns column values into conditions in column order.
func sortedKeys(values map[string]any) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func equalityConditions(values map[string]any) []data.Condition {
	names := sortedKeys(values)
	conds := make([]data.Condition, 0, len(names))
	for _, name := range names {
		if values[name] == nil {
			conds = append(conds, data.Condition{Column: name, Operator: data.OpIsNull})
			continue
		}
		conds = append(conds, data.Condition{Column: name, Operator: data.OpEqual, Value: values[name]})
	}
	return conds
}
