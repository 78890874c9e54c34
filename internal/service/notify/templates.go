package notify

import "github.com/gogomarket/rental-backend/pkg/line"

// welcomeTemplate 租户绑定 LINE 后的欢迎消息
var welcomeTemplate = line.MustParseTemplate("welcome", `{
  "type": "bubble",
  "hero": {
    "type": "image",
    "url": "${banner_url}",
    "size": "full",
    "aspectRatio": "20:13",
    "aspectMode": "cover"
  },
  "body": {
    "type": "box",
    "layout": "vertical",
    "contents": [
      {"type": "text", "text": "ขอบคุณสำหรับการเชื่อมต่อ!", "weight": "bold", "size": "xl", "align": "center", "color": "#1DB446"},
      {"type": "text", "text": "คุณ ${tenant_name} ได้เชื่อมต่อบัญชีกับ ${shop_name} แล้ว", "wrap": true, "margin": "md", "align": "center"},
      {"type": "text", "text": "รหัสลูกค้า ${customer_code}", "wrap": true, "margin": "md", "align": "center", "color": "#888888"}
    ]
  }
}`)

// billTemplate 月度账单通知
var billTemplate = line.MustParseTemplate("bill", `{
  "type": "bubble",
  "header": {
    "type": "box",
    "layout": "vertical",
    "contents": [
      {"type": "text", "text": "${shop_name}", "weight": "bold", "color": "#1DB446", "size": "sm"},
      {"type": "text", "text": "ใบแจ้งหนี้ ${period}", "weight": "bold", "size": "xl", "margin": "md"},
      {"type": "text", "text": "${bill_number}", "size": "xs", "color": "#aaaaaa", "wrap": true}
    ]
  },
  "body": {
    "type": "box",
    "layout": "vertical",
    "spacing": "sm",
    "contents": [
      {"type": "box", "layout": "horizontal", "contents": [
        {"type": "text", "text": "ค่าเช่า", "size": "sm", "color": "#555555"},
        {"type": "text", "text": "${rent}", "size": "sm", "align": "end"}
      ]},
      {"type": "box", "layout": "horizontal", "contents": [
        {"type": "text", "text": "ค่าน้ำ (${water_usage} หน่วย)", "size": "sm", "color": "#555555"},
        {"type": "text", "text": "${water}", "size": "sm", "align": "end"}
      ]},
      {"type": "box", "layout": "horizontal", "contents": [
        {"type": "text", "text": "ค่าไฟ (${electric_usage} หน่วย)", "size": "sm", "color": "#555555"},
        {"type": "text", "text": "${electric}", "size": "sm", "align": "end"}
      ]},
      {"type": "box", "layout": "horizontal", "contents": [
        {"type": "text", "text": "ส่วนลด", "size": "sm", "color": "#555555"},
        {"type": "text", "text": "-${discount}", "size": "sm", "align": "end"}
      ]},
      {"type": "box", "layout": "horizontal", "contents": [
        {"type": "text", "text": "VAT ${vat_percent}%", "size": "sm", "color": "#555555"},
        {"type": "text", "text": "${vat}", "size": "sm", "align": "end"}
      ]},
      {"type": "separator", "margin": "md"},
      {"type": "box", "layout": "horizontal", "margin": "md", "contents": [
        {"type": "text", "text": "ยอดชำระ", "weight": "bold"},
        {"type": "text", "text": "${total} บาท", "weight": "bold", "align": "end"}
      ]},
      {"type": "text", "text": "เลขอ้างอิง ${ref_number}", "size": "xs", "color": "#aaaaaa", "margin": "md"}
    ]
  },
  "footer": {
    "type": "box",
    "layout": "vertical",
    "contents": [
      {"type": "button", "style": "primary", "color": "#1DB446",
       "action": {"type": "uri", "label": "ส่งสลิปการชำระเงิน", "uri": "${payment_link}"}}
    ]
  }
}`)
