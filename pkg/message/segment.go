package message

// Type 标识消息段类型，取值与 OneBot v11 消息段的 type 字段一致。
type Type string

const (
	TypeText   Type = "text"
	TypeFace   Type = "face"
	TypeImage  Type = "image"
	TypeVideo  Type = "video"
	TypeRecord Type = "record"
	TypeFile   Type = "file"
	TypeAt     Type = "at"
)

// AllMembers 是 At 段中代表全体成员的 qq 取值。
const AllMembers = "all"

// Segment 是富消息中的一个单元。
// 接口包含未导出方法，只有本包内的 Text/Face/Image/Video/Record/File/At 可以实现它，
// 调用方通过 type switch 区分具体变体。
type Segment interface {
	Type() Type
	// fields 返回出站线格式中 data 对象的键值。
	fields() map[string]string
}

// Text 纯文本段。
type Text struct {
	Text string
}

// Face 系统表情段。
type Face struct {
	ID string
}

// Image 图片段。URL 非空时出站优先使用 URL，否则回退 File。
type Image struct {
	File string
	URL  string
}

// Video 视频段。
type Video struct {
	File string
	URL  string
}

// Record 语音段。
type Record struct {
	File string
	URL  string
}

// File 文件段。
type File struct {
	File string
	Name string
	URL  string
}

// At 提及段，QQ 为 AllMembers 时表示 @全体成员。
type At struct {
	QQ   string
	Name string
}

// MentionAll 返回 @全体成员 段。
func MentionAll() At {
	return At{QQ: AllMembers}
}

// IsAll 判断是否为 @全体成员。
func (a At) IsAll() bool {
	return a.QQ == AllMembers
}

func (Text) Type() Type   { return TypeText }
func (Face) Type() Type   { return TypeFace }
func (Image) Type() Type  { return TypeImage }
func (Video) Type() Type  { return TypeVideo }
func (Record) Type() Type { return TypeRecord }
func (File) Type() Type   { return TypeFile }
func (At) Type() Type     { return TypeAt }

func (t Text) fields() map[string]string {
	return map[string]string{"text": t.Text}
}

func (f Face) fields() map[string]string {
	return map[string]string{"id": f.ID}
}

func (i Image) fields() map[string]string {
	return map[string]string{"file": mediaRef(i.File, i.URL)}
}

func (v Video) fields() map[string]string {
	return map[string]string{"file": mediaRef(v.File, v.URL)}
}

func (r Record) fields() map[string]string {
	return map[string]string{"file": mediaRef(r.File, r.URL)}
}

func (f File) fields() map[string]string {
	out := map[string]string{"file": mediaRef(f.File, f.URL)}
	if f.Name != "" {
		out["name"] = f.Name
	}
	return out
}

func (a At) fields() map[string]string {
	return map[string]string{"qq": a.QQ}
}

// mediaRef 选择出站使用的资源引用：收到的 file 往往只是实现端缓存名，URL 跨实现更可靠。
func mediaRef(file, url string) string {
	if url != "" {
		return url
	}
	return file
}

// fromFields 按 type 与 data 键值还原消息段。
// 不支持的类型（reply、forward、json 等）返回 false，由调用方丢弃。
func fromFields(typ string, f map[string]string) (Segment, bool) {
	switch Type(typ) {
	case TypeText:
		return Text{Text: f["text"]}, true
	case TypeFace:
		return Face{ID: f["id"]}, true
	case TypeImage:
		return Image{File: f["file"], URL: f["url"]}, true
	case TypeVideo:
		return Video{File: f["file"], URL: f["url"]}, true
	case TypeRecord:
		return Record{File: f["file"], URL: f["url"]}, true
	case TypeFile:
		name := f["name"]
		if name == "" {
			name = f["file"]
		}
		return File{File: f["file"], Name: name, URL: f["url"]}, true
	case TypeAt:
		return At{QQ: f["qq"], Name: f["name"]}, true
	default:
		return nil, false
	}
}
